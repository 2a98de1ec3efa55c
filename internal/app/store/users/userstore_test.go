package userstore_test

import (
	"context"
	"testing"

	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/domain/models"
	"github.com/parishhub/parishhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ensureUniqueEmailIndex(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := models.User{
		FullName: "  Ada   Lovelace ",
		Email:    "Ada@Example.COM",
	}

	created, err := store.Create(ctx, user)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.FullName != "Ada Lovelace" {
		t.Errorf("FullName: got %q, want %q", created.FullName, "Ada Lovelace")
	}
	if created.FullNameCI == "" {
		t.Error("expected FullNameCI to be set")
	}
	if created.Email != "ada@example.com" {
		t.Errorf("Email: got %q, want %q", created.Email, "ada@example.com")
	}
	if created.Role != models.RoleMember {
		t.Errorf("Role: got %q, want %q", created.Role, models.RoleMember)
	}
	if created.Verified {
		t.Error("new user should not be verified")
	}
	if created.Status != "inactive" {
		t.Errorf("Status: got %q, want inactive until first sign-in", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Create_InvalidRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := models.User{
		FullName: "Test User",
		Email:    "test@example.com",
		Role:     "pope",
	}

	if _, err := store.Create(ctx, user); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	// The unique email index is required for duplicate detection.
	ctxIdx, cancelIdx := testutil.TestContext()
	defer cancelIdx()
	if err := ensureUniqueEmailIndex(ctxIdx, db); err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{FullName: "One", Email: "dup@example.com"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := store.Create(ctx, models.User{FullName: "Two", Email: "DUP@example.com"})
	if err != userstore.ErrDuplicateEmail {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStore_GetByEmail_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{FullName: "Find Me", Email: "FindMe@Example.COM"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := store.GetByEmail(ctx, "findme@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID: got %v, want %v", found.ID, created.ID)
	}
}

func TestStore_MarkActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{FullName: "Sign In", Email: "signin@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.MarkActive(ctx, created.ID); err != nil {
		t.Fatalf("MarkActive failed: %v", err)
	}

	found, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Status != "active" {
		t.Errorf("Status: got %q, want active after sign-in", found.Status)
	}
}

func TestStore_SetVerified(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{FullName: "Verify Me", Email: "verify@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetVerified(ctx, created.ID); err != nil {
		t.Fatalf("SetVerified failed: %v", err)
	}

	found, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !found.Verified {
		t.Error("expected user to be verified")
	}

	if err := store.SetVerified(ctx, primitive.NewObjectID()); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments for unknown user, got %v", err)
	}
}

func TestStore_UpdatePassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{FullName: "Pass User", Email: "pass@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.UpdatePassword(ctx, created.ID, "fakehash", true); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	found, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.PasswordHash == nil || *found.PasswordHash != "fakehash" {
		t.Error("expected password hash to be stored")
	}
	if !found.PasswordTemp {
		t.Error("expected password_temp to be set")
	}

	// Rotating to a permanent password clears the temp flag.
	if err := store.UpdatePassword(ctx, created.ID, "newhash", false); err != nil {
		t.Fatalf("UpdatePassword (rotate) failed: %v", err)
	}
	found, _ = store.GetByID(ctx, created.ID)
	if found.PasswordTemp {
		t.Error("expected password_temp to be cleared")
	}
}

func TestStore_PromoteToChurchAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{FullName: "Pastor", Email: "pastor@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	churchID := primitive.NewObjectID()
	if err := store.PromoteToChurchAdmin(ctx, created.ID, churchID); err != nil {
		t.Fatalf("PromoteToChurchAdmin failed: %v", err)
	}

	found, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Role != models.RoleChurchAdmin {
		t.Errorf("Role: got %q, want %q", found.Role, models.RoleChurchAdmin)
	}
	if found.ChurchID == nil || *found.ChurchID != churchID {
		t.Error("expected church_id to be set")
	}
}

func TestStore_LinkChurch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{FullName: "Joiner", Email: "joiner@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first := primitive.NewObjectID()
	if err := store.LinkChurch(ctx, created.ID, first); err != nil {
		t.Fatalf("LinkChurch failed: %v", err)
	}

	// Joining a second church is rejected; the original link stands.
	second := primitive.NewObjectID()
	if err := store.LinkChurch(ctx, created.ID, second); err != userstore.ErrAlreadyLinked {
		t.Errorf("expected ErrAlreadyLinked, got %v", err)
	}

	found, _ := store.GetByID(ctx, created.ID)
	if found.ChurchID == nil || *found.ChurchID != first {
		t.Error("expected original church link to be preserved")
	}

	if err := store.LinkChurch(ctx, primitive.NewObjectID(), first); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments for unknown user, got %v", err)
	}
}

func TestStore_UpsertGoogleUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// New account: created verified with no password.
	u, err := store.UpsertGoogleUser(ctx, "google@example.com", "Google User", "sub-123")
	if err != nil {
		t.Fatalf("UpsertGoogleUser failed: %v", err)
	}
	if !u.Verified {
		t.Error("expected OAuth user to be verified")
	}
	if u.PasswordHash != nil {
		t.Error("expected no password hash for OAuth user")
	}
	if u.AuthProviderID == nil || *u.AuthProviderID != "sub-123" {
		t.Error("expected provider subject to be linked")
	}

	// Existing account: second sign-in resolves to the same user.
	again, err := store.UpsertGoogleUser(ctx, "google@example.com", "Google User", "sub-123")
	if err != nil {
		t.Fatalf("second UpsertGoogleUser failed: %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("expected same user, got %v and %v", u.ID, again.ID)
	}
}
