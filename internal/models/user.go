package models

import "time"

// User is an account holder whose attendance is recorded.
type User struct {
	ID            int        `db:"id" json:"id"`
	Name          *string    `db:"name" json:"name"`
	Email         string     `db:"email" json:"email"`
	EmailVerified *time.Time `db:"emailVerified" json:"emailVerified"`
	Image         *string    `db:"image" json:"image"`

	Presence  []Presence `db:"-" rel:"presence" json:"presence,omitempty"`
	UserRoles []UserRole `db:"-" rel:"user_roles" json:"user_roles,omitempty"`
}
