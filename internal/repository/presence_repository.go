package repository

import (
	"context"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// PresenceRepository records attendance.
type PresenceRepository struct {
	*Table[models.Presence]
}

// NewPresenceRepository constructs the repository.
func NewPresenceRepository(e *engine) *PresenceRepository {
	return &PresenceRepository{Table: newTable[models.Presence](e, ModelPresence)}
}

// Mark records whether userID attended lectureID, replacing any earlier mark.
func (r *PresenceRepository) Mark(ctx context.Context, userID, lectureID int, present bool) (*models.Presence, error) {
	return r.Upsert(ctx, query.UpsertArgs{
		Where:  query.Where{"user_id_lecture_id": query.Where{"user_id": userID, "lecture_id": lectureID}},
		Create: query.Data{"user_id": userID, "lecture_id": lectureID, "is_present": present},
		Update: query.Data{"is_present": present},
	})
}

// ListByLecture returns the marks of a lecture with their users.
func (r *PresenceRepository) ListByLecture(ctx context.Context, lectureID int) ([]models.Presence, error) {
	return r.FindMany(ctx, query.FindArgs{
		Where:   query.Where{"lecture_id": lectureID},
		OrderBy: []query.Order{query.Asc("user_id")},
		Include: query.Include{"users": true},
	})
}

// Tally counts present and absent marks of a lecture.
func (r *PresenceRepository) Tally(ctx context.Context, lectureID int) (present, absent int64, err error) {
	groups, err := r.GroupBy(ctx, query.GroupByArgs{
		By:              []string{"is_present"},
		Where:           query.Where{"lecture_id": lectureID},
		AggregateSelect: query.AggregateSelect{Count: []string{query.AllRows}},
	})
	if err != nil {
		return 0, 0, err
	}
	for _, g := range groups {
		if isPresent, _ := g.Keys["is_present"].(bool); isPresent {
			present = g.Count[query.AllRows]
		} else {
			absent = g.Count[query.AllRows]
		}
	}
	return present, absent, nil
}
