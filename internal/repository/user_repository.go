package repository

import (
	"context"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// UserRepository provides database access for users.
type UserRepository struct {
	*Table[models.User]
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(e *engine) *UserRepository {
	return &UserRepository{Table: newTable[models.User](e, ModelUsers)}
}

// FindByEmail returns the first user with the given address. Emails are not
// unique in the store, so the lowest id wins.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindFirst(ctx, query.FindArgs{
		Where:   query.Where{"email": query.Equals(email).Insensitive()},
		OrderBy: []query.Order{query.Asc("id")},
	})
}

// WithRoles loads a user together with its role assignments and roles.
func (r *UserRepository) WithRoles(ctx context.Context, id int) (*models.User, error) {
	return r.FindUniqueOrThrow(ctx, query.UniqueArgs{
		Where: query.Where{"id": id},
		Include: query.Include{
			"user_roles": query.FindArgs{Include: query.Include{"role": true}},
		},
	})
}
