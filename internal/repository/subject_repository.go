package repository

import (
	"context"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	*Table[models.Subject]
}

// NewSubjectRepository constructs a new subject repository.
func NewSubjectRepository(e *engine) *SubjectRepository {
	return &SubjectRepository{Table: newTable[models.Subject](e, ModelSubject)}
}

// Search lists subjects whose name contains term, ignoring case.
func (r *SubjectRepository) Search(ctx context.Context, term string, take int) ([]models.Subject, error) {
	args := query.FindArgs{OrderBy: []query.Order{query.Asc("name")}}
	if term != "" {
		args.Where = query.Where{"name": query.Contains(term).Insensitive()}
	}
	if take > 0 {
		args.Take = query.Take(take)
	}
	return r.FindMany(ctx, args)
}
