package repository

import (
	"context"
	"time"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// ScheduleRepository manages teaching days.
type ScheduleRepository struct {
	*Table[models.Schedule]
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(e *engine) *ScheduleRepository {
	return &ScheduleRepository{Table: newTable[models.Schedule](e, ModelSchedule)}
}

// ListBetween returns the schedules dated within [from, to), oldest first.
func (r *ScheduleRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Schedule, error) {
	return r.FindMany(ctx, query.FindArgs{
		Where:   query.Where{"date": query.Ops{query.Gte(from), query.Lt(to)}},
		OrderBy: []query.Order{query.Asc("date")},
	})
}

// LectureRepository manages lectures.
type LectureRepository struct {
	*Table[models.Lecture]
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(e *engine) *LectureRepository {
	return &LectureRepository{Table: newTable[models.Lecture](e, ModelLecture)}
}

// ListBySchedule returns the lectures of a schedule in start order, with
// their subject and teacher loaded.
func (r *LectureRepository) ListBySchedule(ctx context.Context, scheduleID int) ([]models.Lecture, error) {
	return r.FindMany(ctx, query.FindArgs{
		Where:   query.Where{"schedule_id": scheduleID},
		OrderBy: []query.Order{query.Asc("start_time")},
		Include: query.Include{"subject": true, "teacher": true},
	})
}
