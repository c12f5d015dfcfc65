package models

// Subject is a taught discipline; grades are keyed by it.
type Subject struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
