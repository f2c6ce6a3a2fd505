package models

import "time"

// Presence is the attendance record of one user for one lecture.
type Presence struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	LectureID int       `db:"lecture_id" json:"lecture_id"`
	IsPresent bool      `db:"is_present" json:"is_present"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	User    *User    `db:"-" rel:"users" json:"users,omitempty"`
	Lecture *Lecture `db:"-" rel:"lecture" json:"lecture,omitempty"`
}
