package eventstore

import (
	"context"
	"time"

	"github.com/parishhub/parishhub/internal/app/system/normalize"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("events")}
}

// Create inserts a new event for a church.
func (s *Store) Create(ctx context.Context, ev models.Event) (models.Event, error) {
	ev.ID = primitive.NewObjectID()
	ev.Title = normalize.Name(ev.Title)

	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, ev); err != nil {
		return models.Event{}, err
	}
	return ev, nil
}

// GetByID loads an event by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var ev models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListByChurch returns a church's events ordered soonest first.
func (s *Store) ListByChurch(ctx context.Context, churchID primitive.ObjectID) ([]models.Event, error) {
	cur, err := s.c.Find(ctx, bson.M{"church_id": churchID},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []models.Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Update holds the editable event fields. Nil pointers leave the stored
// value untouched.
type Update struct {
	Title       *string
	Time        *string
	Location    *string
	Description *string
	Date        *time.Time
}

// Update edits an event. The church filter prevents cross-tenant edits even
// if a caller guesses another church's event ID.
func (s *Store) Update(ctx context.Context, id, churchID primitive.ObjectID, upd Update) (*models.Event, error) {
	set := bson.M{"updated_at": time.Now()}
	if upd.Title != nil {
		set["title"] = normalize.Name(*upd.Title)
	}
	if upd.Time != nil {
		set["time"] = *upd.Time
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Date != nil {
		set["date"] = *upd.Date
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "church_id": churchID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var ev models.Event
	if err := res.Decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Delete removes an event, scoped to the owning church.
// Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
