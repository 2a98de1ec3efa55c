// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a church-scoped calendar event. Time is free text ("10:30 AM");
// Date is the parsed calendar date.
type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChurchID    primitive.ObjectID `bson:"church_id" json:"church_id"`
	Title       string             `bson:"title" json:"title"`
	Time        string             `bson:"time,omitempty" json:"time,omitempty"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time          `bson:"date" json:"date"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
