package models

import "time"

// Teacher represents an instructor record.
type Teacher struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Lectures        []Lecture        `db:"-" rel:"lecture" json:"lecture,omitempty"`
	TeacherSubjects []TeacherSubject `db:"-" rel:"teacher_subjects" json:"teacher_subjects,omitempty"`
}

// TeacherSubject records which subjects a teacher is qualified for.
type TeacherSubject struct {
	TeacherID  int       `db:"teacher_id" json:"teacher_id"`
	SubjectID  int       `db:"subject_id" json:"subject_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
	IsPrimary  bool      `db:"is_primary" json:"is_primary"`

	Teacher *Teacher `db:"-" rel:"teacher" json:"teacher,omitempty"`
	Subject *Subject `db:"-" rel:"subject" json:"subject,omitempty"`
}
