// Package appstore manages church applications, which double as the church
// records themselves once approved.
package appstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/parishhub/parishhub/internal/app/system/normalize"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateApplication is returned when a pending or approved
	// application already exists for the email.
	ErrDuplicateApplication = errors.New("an application for this email is already pending or approved")
	// ErrNotPending is returned when a review decision targets an
	// application that is no longer pending.
	ErrNotPending = errors.New("application is not pending")
	// ErrJoinCodeExists is returned when a join code has already been issued.
	ErrJoinCodeExists = errors.New("join code has already been generated")
	// ErrNotApproved is returned when an operation requires an approved church.
	ErrNotApproved = errors.New("application is not approved")
	// ErrCodeTaken is returned when a generated join code collides with
	// another church's code. Callers should regenerate and retry.
	ErrCodeTaken = errors.New("join code already in use")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("church_applications")}
}

// Create inserts a new pending application. The partial unique index on
// email enforces one live application per address.
func (s *Store) Create(ctx context.Context, app models.ChurchApplication) (models.ChurchApplication, error) {
	app.ID = primitive.NewObjectID()
	app.ChurchName = normalize.Name(app.ChurchName)
	app.Email = normalize.Email(app.Email)
	app.Status = models.ApplicationPending
	app.ReviewerID = nil
	app.ReviewNotes = ""
	app.JoinCode = nil
	app.JoinCodeGeneratedAt = nil

	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, app); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ChurchApplication{}, ErrDuplicateApplication
		}
		return models.ChurchApplication{}, err
	}
	return app, nil
}

// GetByID loads an application by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ChurchApplication, error) {
	var app models.ChurchApplication
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications, optionally filtered by status, newest first.
func (s *Store) List(ctx context.Context, status string) ([]models.ChurchApplication, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = normalize.Status(status)
	}

	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	apps := []models.ChurchApplication{}
	if err := cur.All(ctx, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// Approve marks a pending application approved and records the reviewer and
// notes. Approving an already-approved application is a no-op that returns
// the current record with repeated=true; any other state returns
// ErrNotPending.
func (s *Store) Approve(ctx context.Context, id, reviewerID primitive.ObjectID, notes string) (*models.ChurchApplication, bool, error) {
	return s.review(ctx, id, reviewerID, models.ApplicationApproved, notes)
}

// Reject marks a pending application rejected with optional reviewer notes.
func (s *Store) Reject(ctx context.Context, id, reviewerID primitive.ObjectID, notes string) (*models.ChurchApplication, error) {
	app, _, err := s.review(ctx, id, reviewerID, models.ApplicationRejected, notes)
	return app, err
}

func (s *Store) review(ctx context.Context, id, reviewerID primitive.ObjectID, decision, notes string) (*models.ChurchApplication, bool, error) {
	set := bson.M{
		"status":      decision,
		"reviewer_id": reviewerID,
		"updated_at":  time.Now(),
	}
	if notes != "" {
		set["review_notes"] = notes
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.ApplicationPending},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var app models.ChurchApplication
	if err := res.Decode(&app); err != nil {
		if err != mongo.ErrNoDocuments {
			return nil, false, err
		}
		// Not pending: distinguish repeat decisions from state conflicts.
		existing, gerr := s.GetByID(ctx, id)
		if gerr != nil {
			return nil, false, gerr
		}
		if existing.Status == decision {
			return existing, true, nil
		}
		return nil, false, ErrNotPending
	}
	return &app, false, nil
}

// SetJoinCode issues a join code for an approved church. The code is
// write-once: a second call fails with ErrJoinCodeExists.
func (s *Store) SetJoinCode(ctx context.Context, id primitive.ObjectID, code string) (*models.ChurchApplication, error) {
	now := time.Now()
	res := s.c.FindOneAndUpdate(ctx,
		bson.M{
			"_id":       id,
			"status":    models.ApplicationApproved,
			"join_code": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"join_code":              code,
			"join_code_generated_at": now,
			"updated_at":             now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var app models.ChurchApplication
	if err := res.Decode(&app); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrCodeTaken
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}
		existing, gerr := s.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if existing.Status != models.ApplicationApproved {
			return nil, ErrNotApproved
		}
		return nil, ErrJoinCodeExists
	}
	return &app, nil
}

// GetByJoinCode resolves a join code to its approved church.
func (s *Store) GetByJoinCode(ctx context.Context, code string) (*models.ChurchApplication, error) {
	var app models.ChurchApplication
	err := s.c.FindOne(ctx, bson.M{
		"join_code": code,
		"status":    models.ApplicationApproved,
	}).Decode(&app)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApprovedByEmail finds the approved church an admin account belongs to.
func (s *Store) GetApprovedByEmail(ctx context.Context, email string) (*models.ChurchApplication, error) {
	var app models.ChurchApplication
	err := s.c.FindOne(ctx, bson.M{
		"email":  normalize.Email(email),
		"status": models.ApplicationApproved,
	}).Decode(&app)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ProfileUpdate holds the presentation fields a church admin can edit.
// Nil pointers leave the stored value untouched.
type ProfileUpdate struct {
	Bio    *string
	Avatar *string
	Cover  *string
}

// UpdateProfile edits an approved church's presentation fields.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.ChurchApplication, error) {
	set := bson.M{"updated_at": time.Now()}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Avatar != nil {
		set["avatar"] = *upd.Avatar
	}
	if upd.Cover != nil {
		set["cover"] = *upd.Cover
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.ApplicationApproved},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var app models.ChurchApplication
	if err := res.Decode(&app); err != nil {
		if err != mongo.ErrNoDocuments {
			return nil, err
		}
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrNotApproved
	}
	return &app, nil
}
