// internal/domain/models/ministry.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ministries is the closed set of ministry names a member can join.
var Ministries = []string{"music", "youth", "education", "community", "outreach"}

// IsMinistry reports whether name is one of the fixed ministry names.
func IsMinistry(name string) bool {
	for _, m := range Ministries {
		if m == name {
			return true
		}
	}
	return false
}

// Membership status values.
const (
	MembershipPending      = "pending"
	MembershipApproved     = "approved"
	MembershipRejected     = "rejected"
	MembershipLeavePending = "leave-pending"
	MembershipRemoved      = "removed"
)

// MinistryMembership links a member to one ministry within their church.
// The (church_id, user_id, ministry) triple is unique; rows are retired via
// the "removed" status rather than deleted.
type MinistryMembership struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChurchID  primitive.ObjectID `bson:"church_id" json:"church_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Ministry  string             `bson:"ministry" json:"ministry"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
