// Package ministrystore manages ministry membership records. A record is
// unique per (church, user, ministry) and moves through a small lifecycle:
// pending -> approved | rejected, approved -> leave-pending -> removed.
package ministrystore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrUnknownMinistry is returned for a ministry outside the fixed set.
	ErrUnknownMinistry = errors.New("unknown ministry")
	// ErrNotApproved is returned when leaving a ministry the user is not
	// an approved member of.
	ErrNotApproved = errors.New("no approved membership to leave")
	// ErrNotReviewable is returned when a review decision targets a record
	// that has no pending join or leave request.
	ErrNotReviewable = errors.New("membership has no pending request")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("ministry_memberships")}
}

// RequestJoin files a join request for a ministry. The (church, user,
// ministry) row is upserted to pending whatever its prior state, so a
// rejected or removed membership is revived and re-joining resets an
// existing row back to pending.
func (s *Store) RequestJoin(ctx context.Context, churchID, userID primitive.ObjectID, ministry string) (*models.MinistryMembership, error) {
	if !models.IsMinistry(ministry) {
		return nil, ErrUnknownMinistry
	}

	now := time.Now()
	filter := bson.M{
		"church_id": churchID,
		"user_id":   userID,
		"ministry":  ministry,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.MembershipPending,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"church_id":  churchID,
			"user_id":    userID,
			"ministry":   ministry,
			"created_at": now,
		},
	}

	res := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))

	var m models.MinistryMembership
	if err := res.Decode(&m); err != nil {
		// Two concurrent first requests can race the unique index; the
		// loser retries against the now-existing row.
		if wafflemongo.IsDup(err) {
			res = s.c.FindOneAndUpdate(ctx, filter,
				bson.M{"$set": bson.M{"status": models.MembershipPending, "updated_at": now}},
				options.FindOneAndUpdate().SetReturnDocument(options.After))
			if err := res.Decode(&m); err != nil {
				return nil, err
			}
			return &m, nil
		}
		return nil, err
	}
	return &m, nil
}

// RequestLeave moves an approved membership to leave-pending. Any other
// state returns ErrNotApproved.
func (s *Store) RequestLeave(ctx context.Context, churchID, userID primitive.ObjectID, ministry string) (*models.MinistryMembership, error) {
	if !models.IsMinistry(ministry) {
		return nil, ErrUnknownMinistry
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{
			"church_id": churchID,
			"user_id":   userID,
			"ministry":  ministry,
			"status":    models.MembershipApproved,
		},
		bson.M{"$set": bson.M{
			"status":     models.MembershipLeavePending,
			"updated_at": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var m models.MinistryMembership
	if err := res.Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotApproved
		}
		return nil, err
	}
	return &m, nil
}

// Review settles a pending request. For a join request (pending), approve
// activates the membership and reject closes it. For a leave request
// (leave-pending), approve removes the member and reject keeps them approved.
func (s *Store) Review(ctx context.Context, id primitive.ObjectID, approve bool) (*models.MinistryMembership, error) {
	var m models.MinistryMembership
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, err
	}

	var next string
	switch m.Status {
	case models.MembershipPending:
		if approve {
			next = models.MembershipApproved
		} else {
			next = models.MembershipRejected
		}
	case models.MembershipLeavePending:
		if approve {
			next = models.MembershipRemoved
		} else {
			next = models.MembershipApproved
		}
	default:
		return nil, ErrNotReviewable
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": m.Status},
		bson.M{"$set": bson.M{"status": next, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if err := res.Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			// Settled concurrently.
			return nil, ErrNotReviewable
		}
		return nil, err
	}
	return &m, nil
}

// Get loads the membership record for (church, user, ministry).
func (s *Store) Get(ctx context.Context, churchID, userID primitive.ObjectID, ministry string) (*models.MinistryMembership, error) {
	var m models.MinistryMembership
	err := s.c.FindOne(ctx, bson.M{
		"church_id": churchID,
		"user_id":   userID,
		"ministry":  ministry,
	}).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID loads a membership record.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.MinistryMembership, error) {
	var m models.MinistryMembership
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByUser returns all of a user's membership records, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.MinistryMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.MinistryMembership{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Roster returns a church's approved members grouped by ministry. Every
// ministry in the fixed set appears in the result, empty or not. Open join
// and leave requests are listed separately via ListRequests.
func (s *Store) Roster(ctx context.Context, churchID primitive.ObjectID) (map[string][]models.MinistryMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"church_id": churchID,
		"status":    models.MembershipApproved,
	}, options.Find().SetSort(bson.D{{Key: "ministry", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	roster := make(map[string][]models.MinistryMembership, len(models.Ministries))
	for _, name := range models.Ministries {
		roster[name] = []models.MinistryMembership{}
	}
	for cur.Next(ctx) {
		var m models.MinistryMembership
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		roster[m.Ministry] = append(roster[m.Ministry], m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return roster, nil
}

// ListRequests returns a church's open join and leave requests, oldest first.
func (s *Store) ListRequests(ctx context.Context, churchID primitive.ObjectID) ([]models.MinistryMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"church_id": churchID,
		"status": bson.M{"$in": bson.A{
			models.MembershipPending,
			models.MembershipLeavePending,
		}},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.MinistryMembership{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
