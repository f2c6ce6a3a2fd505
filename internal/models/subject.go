package models

import "time"

// Subject represents an academic subject.
type Subject struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Lectures        []Lecture        `db:"-" rel:"lecture" json:"lecture,omitempty"`
	TeacherSubjects []TeacherSubject `db:"-" rel:"teacher_subjects" json:"teacher_subjects,omitempty"`
}
