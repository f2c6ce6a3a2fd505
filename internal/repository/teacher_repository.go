package repository

import (
	"context"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// TeacherRepository handles persistence for teachers.
type TeacherRepository struct {
	*Table[models.Teacher]
}

// NewTeacherRepository constructs a new teacher repository.
func NewTeacherRepository(e *engine) *TeacherRepository {
	return &TeacherRepository{Table: newTable[models.Teacher](e, ModelTeacher)}
}

// WithSubjects loads a teacher with the subjects it may teach.
func (r *TeacherRepository) WithSubjects(ctx context.Context, id int) (*models.Teacher, error) {
	return r.FindUniqueOrThrow(ctx, query.UniqueArgs{
		Where: query.Where{"id": id},
		Include: query.Include{"teacher_subjects": query.FindArgs{
			OrderBy: []query.Order{query.Desc("is_primary"), query.Asc("subject_id")},
			Include: query.Include{"subject": true},
		}},
	})
}

// TeacherSubjectRepository manages teacher qualifications.
type TeacherSubjectRepository struct {
	*Table[models.TeacherSubject]
}

// NewTeacherSubjectRepository constructs the repository.
func NewTeacherSubjectRepository(e *engine) *TeacherSubjectRepository {
	return &TeacherSubjectRepository{Table: newTable[models.TeacherSubject](e, ModelTeacherSubjects)}
}

// SetPrimary marks subjectID as the primary subject of teacherID and clears
// the flag on every other subject of the teacher.
func (r *TeacherSubjectRepository) SetPrimary(ctx context.Context, teacherID, subjectID int) (*models.TeacherSubject, error) {
	var out *models.TeacherSubject
	err := r.engine.atomically(ctx, func(x *engine) error {
		tx := newTable[models.TeacherSubject](x, ModelTeacherSubjects)
		if _, err := tx.UpdateMany(ctx, query.UpdateManyArgs{
			Where: query.Where{"teacher_id": teacherID, "subject_id": query.Ne(subjectID)},
			Data:  query.Data{"is_primary": false},
		}); err != nil {
			return err
		}
		updated, err := tx.Update(ctx, query.UpdateArgs{
			Where: query.Where{"teacher_id_subject_id": query.Where{"teacher_id": teacherID, "subject_id": subjectID}},
			Data:  query.Data{"is_primary": true},
		})
		out = updated
		return err
	})
	return out, err
}
