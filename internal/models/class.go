package models

import (
	"time"

	"github.com/lib/pq"
)

// Class is a section of students. StudentIDs is a denormalized roster kept in
// agreement with Student.Class by the transfer and enrollment flows.
type Class struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	TeacherID  *string        `db:"teacher_id" json:"teacher_id,omitempty"`
	StudentIDs pq.StringArray `db:"student_ids" json:"student_ids"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// HasStudent reports whether id is on the roster.
func (c *Class) HasStudent(id string) bool {
	for _, sid := range c.StudentIDs {
		if sid == id {
			return true
		}
	}
	return false
}

// ClassPatch carries class fields to change. Rosters are changed through
// UpdateRoster only.
type ClassPatch struct {
	Name      *string `json:"name,omitempty"`
	TeacherID *string `json:"teacher_id,omitempty"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Search    string
	TeacherID string
	Page      int
	PageSize  int
}

// RosterDrift describes a class whose roster disagrees with Student.Class.
type RosterDrift struct {
	ClassID   string   `json:"class_id"`
	ClassName string   `json:"class_name"`
	Missing   []string `json:"missing"`
	Extra     []string `json:"extra"`
	Expected  []string `json:"expected"`
}
