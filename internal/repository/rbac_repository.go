package repository

import (
	"context"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// RoleRepository manages roles.
type RoleRepository struct {
	*Table[models.Role]
}

func NewRoleRepository(e *engine) *RoleRepository {
	return &RoleRepository{Table: newTable[models.Role](e, ModelRole)}
}

// FindByName returns the role with the given unique name, or nil.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	return r.FindUnique(ctx, query.UniqueArgs{Where: query.Where{"name": name}})
}

// UserRoleRepository manages role assignments.
type UserRoleRepository struct {
	*Table[models.UserRole]
}

func NewUserRoleRepository(e *engine) *UserRoleRepository {
	return &UserRoleRepository{Table: newTable[models.UserRole](e, ModelUserRoles)}
}

// Assign grants roleID to userID. Assigning twice keeps the first assignment.
func (r *UserRoleRepository) Assign(ctx context.Context, userID, roleID int) (*models.UserRole, error) {
	key := query.Where{"user_id": userID, "role_id": roleID}
	return r.Upsert(ctx, query.UpsertArgs{
		Where:  query.Where{"user_id_role_id": key},
		Create: query.Data{"user_id": userID, "role_id": roleID},
		Update: query.Data{},
	})
}

// Revoke removes an assignment.
func (r *UserRoleRepository) Revoke(ctx context.Context, userID, roleID int) error {
	_, err := r.Delete(ctx, query.DeleteArgs{Where: query.Where{
		"user_id_role_id": query.Where{"user_id": userID, "role_id": roleID},
	}})
	return err
}

// PermissionRepository manages permissions.
type PermissionRepository struct {
	*Table[models.Permission]
}

func NewPermissionRepository(e *engine) *PermissionRepository {
	return &PermissionRepository{Table: newTable[models.Permission](e, ModelPermission)}
}

// ForUser lists the permissions granted to userID through any of its roles.
func (r *PermissionRepository) ForUser(ctx context.Context, userID int) ([]models.Permission, error) {
	return r.FindMany(ctx, query.FindArgs{
		Where: query.Where{"role_permissions": query.Some(query.Where{
			"role": query.Is(query.Where{"user_roles": query.Some(query.Where{"user_id": userID})}),
		})},
		OrderBy: []query.Order{query.Asc("name")},
	})
}

// RolePermissionRepository manages permission grants.
type RolePermissionRepository struct {
	*Table[models.RolePermission]
}

func NewRolePermissionRepository(e *engine) *RolePermissionRepository {
	return &RolePermissionRepository{Table: newTable[models.RolePermission](e, ModelRolePermissions)}
}

// Grant gives permissionID to roleID. Granting twice is a no-op.
func (r *RolePermissionRepository) Grant(ctx context.Context, roleID, permissionID int) (*models.RolePermission, error) {
	return r.Upsert(ctx, query.UpsertArgs{
		Where:  query.Where{"role_id_permission_id": query.Where{"role_id": roleID, "permission_id": permissionID}},
		Create: query.Data{"role_id": roleID, "permission_id": permissionID},
		Update: query.Data{},
	})
}
