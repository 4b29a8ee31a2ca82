package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a row of the Supabase profiles table.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	FullName     string     `db:"fullname" json:"fullname"`
	PhoneNumber  string     `db:"phone_number" json:"phone_number,omitempty"`
	Roles        []string   `db:"roles" json:"roles"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Actor is the identity an action is evaluated against.
type Actor struct {
	ID           uuid.UUID
	Email        string
	Roles        []Role
	DepartmentID *uuid.UUID
}

func (u *User) Actor() Actor {
	roles := make([]Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, Role(r))
		}
	}
	return Actor{
		ID:           u.ID,
		Email:        u.Email,
		Roles:        roles,
		DepartmentID: u.DepartmentID,
	}
}

func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) InDepartment(id uuid.UUID) bool {
	return a.DepartmentID != nil && *a.DepartmentID == id
}

// Recipient is someone a notification is addressed to.
type Recipient struct {
	UserID uuid.UUID `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Email  string    `json:"email,omitempty" bson:"email,omitempty"`
}
