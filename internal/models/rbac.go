package models

import "time"

// Role groups permissions granted to users.
type Role struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	UserRoles       []UserRole       `db:"-" rel:"user_roles" json:"user_roles,omitempty"`
	RolePermissions []RolePermission `db:"-" rel:"role_permissions" json:"role_permissions,omitempty"`
}

// UserRole assigns a role to a user; (user_id, role_id) is the primary key.
type UserRole struct {
	UserID     int       `db:"user_id" json:"user_id"`
	RoleID     int       `db:"role_id" json:"role_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`

	User *User `db:"-" rel:"users" json:"users,omitempty"`
	Role *Role `db:"-" rel:"role" json:"role,omitempty"`
}

// Permission is a named capability.
type Permission struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	RolePermissions []RolePermission `db:"-" rel:"role_permissions" json:"role_permissions,omitempty"`
}

// RolePermission grants a permission to a role.
type RolePermission struct {
	RoleID       int       `db:"role_id" json:"role_id"`
	PermissionID int       `db:"permission_id" json:"permission_id"`
	AssignedAt   time.Time `db:"assigned_at" json:"assigned_at"`

	Role       *Role       `db:"-" rel:"role" json:"role,omitempty"`
	Permission *Permission `db:"-" rel:"permission" json:"permission,omitempty"`
}
