// Package otpstore manages one-time verification codes for registration
// and password reset. Codes are bcrypt-hashed at rest and expire via a TTL
// index; at most one code is outstanding per (user, purpose).
package otpstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// OTP purposes.
const (
	PurposeRegistration = "registration"
	PurposeReset        = "reset"
)

const (
	// CodeLength is the length of the verification code (6 digits).
	CodeLength = 6
	// DefaultExpiry is how long a code is valid.
	DefaultExpiry = 10 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is the maximum number of verification attempts per code.
	MaxVerifyAttempts = 5
	// MaxResends is the maximum number of code resends within the rate limit window.
	MaxResends = 3
	// ResendWindow is the time window for tracking resend rate limiting.
	ResendWindow = 10 * time.Minute
)

var (
	// ErrNotFound is returned when a code is not found or expired.
	ErrNotFound = errors.New("verification code not found or expired")
	// ErrInvalidCode is returned when the code doesn't match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrTooManyAttempts is returned when too many verification attempts have been made.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrTooManyResends is returned when too many resend requests have been made.
	ErrTooManyResends = errors.New("too many resend requests")
)

// Code is a pending verification code.
type Code struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      primitive.ObjectID `bson:"user_id"`
	Purpose     string             `bson:"purpose"`
	CodeHash    string             `bson:"code_hash"`
	ExpiresAt   time.Time          `bson:"expires_at"` // TTL index field
	CreatedAt   time.Time          `bson:"created_at"`
	Attempts    int                `bson:"attempts"`
	ResendCount int                `bson:"resend_count"`
	WindowStart time.Time          `bson:"window_start"`
}

// Store manages verification codes.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a Store with the specified expiry duration.
// If expiry is 0 or negative, DefaultExpiry (10 minutes) is used.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{
		c:      db.Collection("otps"),
		expiry: expiry,
	}
}

// Expiry returns the validity duration for codes.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// CreateResult contains the generated code for emailing to the user.
type CreateResult struct {
	Code        string // plain text code, never stored
	ResendCount int
}

// Create generates a new code for (user, purpose), replacing any previous
// one. The first code in a resend window is free; every replacement of an
// outstanding code counts against the resend rate limit, whichever endpoint
// requested it.
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID, purpose string) (*CreateResult, error) {
	now := time.Now()

	var existing Code
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "purpose": purpose}).Decode(&existing)
	existingFound := err == nil
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, err
	}

	// Carry resend tracking across regenerations within the window.
	resendCount := 0
	windowStart := now
	if existingFound && now.Before(existing.WindowStart.Add(ResendWindow)) {
		if existing.ResendCount >= MaxResends {
			return nil, ErrTooManyResends
		}
		windowStart = existing.WindowStart
		resendCount = existing.ResendCount + 1
	}

	code := generateCode()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	_, _ = s.c.DeleteMany(ctx, bson.M{"user_id": userID, "purpose": purpose})

	v := Code{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Purpose:     purpose,
		CodeHash:    string(hash),
		ExpiresAt:   now.Add(s.expiry),
		CreatedAt:   now,
		Attempts:    0,
		ResendCount: resendCount,
		WindowStart: windowStart,
	}

	if _, err := s.c.InsertOne(ctx, v); err != nil {
		return nil, fmt.Errorf("insert verification code: %w", err)
	}

	return &CreateResult{Code: code, ResendCount: resendCount}, nil
}

// Check verifies a code without consuming it. Each call, valid or not,
// counts against the attempt limit. Used by the standalone reset-code check
// that precedes the actual password reset.
func (s *Store) Check(ctx context.Context, userID primitive.ObjectID, purpose, code string) error {
	_, err := s.verify(ctx, userID, purpose, code)
	return err
}

// Consume verifies a code and deletes it on success. Codes are single-use.
func (s *Store) Consume(ctx context.Context, userID primitive.ObjectID, purpose, code string) error {
	v, err := s.verify(ctx, userID, purpose, code)
	if err != nil {
		return err
	}
	_, _ = s.c.DeleteOne(ctx, bson.M{"_id": v.ID})
	return nil
}

func (s *Store) verify(ctx context.Context, userID primitive.ObjectID, purpose, code string) (*Code, error) {
	var v Code
	err := s.c.FindOne(ctx, bson.M{
		"user_id":    userID,
		"purpose":    purpose,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&v)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if v.Attempts >= MaxVerifyAttempts {
		return nil, ErrTooManyAttempts
	}

	// Count the attempt before comparing, valid or not.
	_, _ = s.c.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$inc": bson.M{"attempts": 1}})

	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)); err != nil {
		return nil, ErrInvalidCode
	}
	return &v, nil
}

// DeleteByUser deletes any outstanding code for (user, purpose).
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID, purpose string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "purpose": purpose})
	return err
}

// generateCode generates a random 6-digit numeric code.
// Panics if the system's cryptographic random number generator fails.
func generateCode() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	n := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	if n < 0 {
		n = -n
	}
	// Ensure 6 digits (100000 to 999999)
	code := (n % 900000) + 100000
	return fmt.Sprintf("%06d", code)
}
