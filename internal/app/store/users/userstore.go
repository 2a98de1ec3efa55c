package userstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/parishhub/parishhub/internal/app/system/normalize"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "member"|"church-admin"|"admin"|"superadmin"`)
)

// Create inserts a new user after normalizing & validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	// Accounts start inactive; the first successful sign-in flips the flag.
	if u.Status == "" {
		u.Status = "inactive"
	}

	switch u.Role {
	case models.RoleMember, models.RoleChurchAdmin, models.RoleAdmin, models.RoleSuperAdmin:
		// ok
	default:
		return models.User{}, errBadRole
	}

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetVerified marks a user's email as verified.
func (s *Store) SetVerified(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"verified":   true,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkActive records a successful sign-in.
func (s *Store) MarkActive(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     "active",
		"updated_at": time.Now(),
	}})
	return err
}

// UpdatePassword replaces a user's password hash. temp marks the password as
// provisional (assigned by the system, rotation expected on next change).
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, temp bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"password_temp": temp,
		"updated_at":    time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// PromoteToChurchAdmin sets role to church-admin and links the user to a church.
// Used when an application is approved for an existing account.
func (s *Store) PromoteToChurchAdmin(ctx context.Context, id, churchID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"role":       models.RoleChurchAdmin,
		"church_id":  churchID,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// PromoteToSuperAdmin sets the account with the given email to superadmin
// and marks it verified. Used by the startup bootstrap.
func (s *Store) PromoteToSuperAdmin(ctx context.Context, email string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"email": normalize.Email(email)}, bson.M{"$set": bson.M{
		"role":       models.RoleSuperAdmin,
		"verified":   true,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// LinkChurch attaches a member to a church. A member already attached to a
// church keeps their existing affiliation and ErrAlreadyLinked is returned.
func (s *Store) LinkChurch(ctx context.Context, id, churchID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "church_id": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"church_id":  churchID,
			"updated_at": time.Now(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the user does not exist or they already belong to a church.
		if err := s.c.FindOne(ctx, bson.M{"_id": id}).Err(); err != nil {
			return err
		}
		return ErrAlreadyLinked
	}
	return nil
}

// ErrAlreadyLinked is returned when a member tries to join a second church.
var ErrAlreadyLinked = errors.New("user already belongs to a church")

// ProfileUpdate holds the fields a user can change about themselves.
type ProfileUpdate struct {
	FullName string
}

// UpdateProfile updates a user's own editable fields.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	name := normalize.Name(upd.FullName)
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"full_name":    name,
		"full_name_ci": text.Fold(name),
		"updated_at":   time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpsertGoogleUser finds or creates the account for a Google sign-in.
// An existing account (matched by email) gets the provider subject linked
// and is marked verified; a new account is created verified with no password.
func (s *Store) UpsertGoogleUser(ctx context.Context, email, fullName, subject string) (*models.User, error) {
	existing, err := s.GetByEmail(ctx, email)
	if err == nil {
		set := bson.M{
			"verified":   true,
			"updated_at": time.Now(),
		}
		if existing.AuthProviderID == nil {
			set["auth_provider_id"] = subject
		}
		if _, err := s.c.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}); err != nil {
			return nil, err
		}
		return s.GetByID(ctx, existing.ID)
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	u := models.User{
		FullName:       fullName,
		Email:          email,
		Role:           models.RoleMember,
		Verified:       true,
		AuthProviderID: &subject,
	}
	created, err := s.Create(ctx, u)
	if err != nil {
		if err == ErrDuplicateEmail {
			// Lost a race with a concurrent sign-in for the same address.
			return s.GetByEmail(ctx, email)
		}
		return nil, err
	}
	return &created, nil
}
