// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account roles, ordered by increasing privilege.
const (
	RoleMember      = "member"
	RoleChurchAdmin = "church-admin"
	RoleAdmin       = "admin"
	RoleSuperAdmin  = "superadmin"
)

// User represents members, church admins, and platform admins.
//
// PasswordHash is nil for OAuth-only accounts until a password is
// explicitly set. ChurchID references the church application the user is
// affiliated with (the member's church, or the church an admin runs).
type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName       string              `bson:"full_name" json:"full_name"`
	FullNameCI     string              `bson:"full_name_ci,omitempty" json:"-"` // case/diacritics-folded for search
	Email          string              `bson:"email" json:"email"`              // lowercase, unique
	PasswordHash   *string             `bson:"password_hash,omitempty" json:"-"`
	PasswordTemp   bool                `bson:"password_temp,omitempty" json:"-"`
	Role           string              `bson:"role" json:"role"` // member | church-admin | admin | superadmin
	Verified       bool                `bson:"verified" json:"verified"`
	Status         string              `bson:"status,omitempty" json:"status,omitempty"` // active | inactive
	ChurchID       *primitive.ObjectID `bson:"church_id,omitempty" json:"church_id,omitempty"`
	AuthProviderID *string             `bson:"auth_provider_id,omitempty" json:"-"` // Google subject for OAuth-linked accounts

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
