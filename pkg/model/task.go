package model

import "time"

// Task is a single item placed in one quadrant of the matrix.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Quadrant    Quadrant `json:"quadrant"`
	Order       int      `json:"order"`
	// Unix milliseconds
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Millis converts t to the millisecond timestamps stored on tasks.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
