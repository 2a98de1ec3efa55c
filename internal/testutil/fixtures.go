package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a verified test user with the given role.
// churchID may be nil for users not yet affiliated with a church.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, churchID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Role:       role,
		Verified:   true,
		Status:     "active",
		ChurchID:   churchID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateMember creates a verified member affiliated with the given church.
func (f *Fixtures) CreateMember(ctx context.Context, fullName, email string, churchID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleMember, &churchID)
}

// CreateChurchAdmin creates a church admin for the given church.
func (f *Fixtures) CreateChurchAdmin(ctx context.Context, fullName, email string, churchID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleChurchAdmin, &churchID)
}

// CreateApplication inserts a church application in the given status.
func (f *Fixtures) CreateApplication(ctx context.Context, churchName, email, status string) models.ChurchApplication {
	f.t.Helper()

	now := time.Now().UTC()
	app := models.ChurchApplication{
		ID:              primitive.NewObjectID(),
		ChurchName:      churchName,
		Address:         "123 Test Street",
		Email:           email,
		ContactNumber:   "555-0100",
		CertificatePath: "test-cert.pdf",
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := f.db.Collection("church_applications").InsertOne(ctx, app)
	if err != nil {
		f.t.Fatalf("failed to create test application: %v", err)
	}

	return app
}

// CreateApprovedChurch inserts an approved church application with a join code.
func (f *Fixtures) CreateApprovedChurch(ctx context.Context, churchName, email, joinCode string) models.ChurchApplication {
	f.t.Helper()

	app := f.CreateApplication(ctx, churchName, email, models.ApplicationApproved)
	now := time.Now().UTC()
	_, err := f.db.Collection("church_applications").UpdateOne(ctx,
		bson.M{"_id": app.ID},
		bson.M{"$set": bson.M{
			"join_code":              joinCode,
			"join_code_generated_at": now,
		}})
	if err != nil {
		f.t.Fatalf("failed to set join code: %v", err)
	}
	app.JoinCode = &joinCode
	app.JoinCodeGeneratedAt = &now
	return app
}

// CreateMembership inserts a ministry membership record.
func (f *Fixtures) CreateMembership(ctx context.Context, churchID, userID primitive.ObjectID, ministry, status string) models.MinistryMembership {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.MinistryMembership{
		ID:        primitive.NewObjectID(),
		ChurchID:  churchID,
		UserID:    userID,
		Ministry:  ministry,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("ministry_memberships").InsertOne(ctx, m)
	if err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}

	return m
}

// CreateEvent inserts an event for the given church.
func (f *Fixtures) CreateEvent(ctx context.Context, churchID primitive.ObjectID, title string, date time.Time) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	ev := models.Event{
		ID:        primitive.NewObjectID(),
		ChurchID:  churchID,
		Title:     title,
		Time:      "10:00 AM",
		Location:  "Main Hall",
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("events").InsertOne(ctx, ev)
	if err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}

	return ev
}
