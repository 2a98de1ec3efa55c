// Package statestore persists short-lived OAuth state nonces so the
// callback can run on any instance behind a load balancer.
package statestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultExpiry is how long an OAuth handshake may take.
const DefaultExpiry = 10 * time.Minute

// ErrInvalidState is returned when a callback state is unknown or expired.
var ErrInvalidState = errors.New("invalid or expired oauth state")

type record struct {
	State     string    `bson:"state"`
	ExpiresAt time.Time `bson:"expires_at"` // TTL index field
	CreatedAt time.Time `bson:"created_at"`
}

type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection("oauth_states"), expiry: expiry}
}

// Issue creates and persists a fresh random state nonce.
func (s *Store) Issue(ctx context.Context) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)

	now := time.Now()
	_, err := s.c.InsertOne(ctx, record{
		State:     state,
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

// Redeem validates and consumes a state nonce. States are single-use.
func (s *Store) Redeem(ctx context.Context, state string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrInvalidState
	}
	return nil
}
