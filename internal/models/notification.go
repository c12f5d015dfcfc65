package models

import "time"

// Notification is an inbox message for one user. The core only creates them;
// reading is an external action.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	Read        bool      `db:"read" json:"read"`
}
