// internal/domain/models/application.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Application status values. Transitions are one-directional:
// pending -> approved or pending -> rejected.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// ChurchApplication is a church's request to operate as a tenant. Once
// approved it doubles as the church record itself: members link to it via
// ChurchID and the join code, and events/ministries are scoped to it.
type ChurchApplication struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ChurchName      string              `bson:"church_name" json:"church_name"`
	Address         string              `bson:"address" json:"address"`
	Email           string              `bson:"email" json:"email"` // lowercase; unique among non-terminal applications
	ContactNumber   string              `bson:"contact_number" json:"contact_number"`
	CertificatePath string              `bson:"certificate_path" json:"certificate_path"`
	Status          string              `bson:"status" json:"status"`
	ReviewerID      *primitive.ObjectID `bson:"reviewer_id,omitempty" json:"reviewer_id,omitempty"`
	ReviewNotes     string              `bson:"review_notes,omitempty" json:"review_notes,omitempty"`

	// Join code is issued after approval and immutable once set.
	JoinCode            *string    `bson:"join_code,omitempty" json:"join_code,omitempty"`
	JoinCodeGeneratedAt *time.Time `bson:"join_code_generated_at,omitempty" json:"join_code_generated_at,omitempty"`

	// Presentation fields, editable by the church admin.
	Bio    string `bson:"bio,omitempty" json:"bio,omitempty"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Cover  string `bson:"cover,omitempty" json:"cover,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
