package models

import "time"

// Schedule is a teaching day grouping lectures.
type Schedule struct {
	ID        int       `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Lectures []Lecture `db:"-" rel:"lecture" json:"lecture,omitempty"`
}

// Lecture is one teaching slot of a subject by a teacher on a schedule.
type Lecture struct {
	ID         int       `db:"id" json:"id"`
	SubjectID  int       `db:"subject_id" json:"subject_id"`
	TeacherID  int       `db:"teacher_id" json:"teacher_id"`
	ScheduleID int       `db:"schedule_id" json:"schedule_id"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Subject  *Subject   `db:"-" rel:"subject" json:"subject,omitempty"`
	Teacher  *Teacher   `db:"-" rel:"teacher" json:"teacher,omitempty"`
	Schedule *Schedule  `db:"-" rel:"schedule" json:"schedule,omitempty"`
	Presence []Presence `db:"-" rel:"presence" json:"presence,omitempty"`
}

// Duration is the planned length of the lecture.
func (l Lecture) Duration() time.Duration {
	return l.EndTime.Sub(l.StartTime)
}
