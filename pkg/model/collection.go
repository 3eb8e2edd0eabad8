package model

import (
	"sort"
	"time"
)

// DocumentVersion is the format version written into every task document.
const DocumentVersion = "1.0.0"

// Collection is the task document: the unit of local persistence and of remote sync.
type Collection struct {
	Todos        []Task    `json:"todos"`
	Version      string    `json:"version"`
	LastModified time.Time `json:"lastModified"`
}

func NewCollection() *Collection {
	return &Collection{Todos: []Task{}, Version: DocumentVersion}
}

// Index returns the position of the task with the given id, or -1.
func (c *Collection) Index(id string) int {
	for i := range c.Todos {
		if c.Todos[i].ID == id {
			return i
		}
	}
	return -1
}

// MaxOrder returns the highest order used in q, or -1 when q is empty.
func (c *Collection) MaxOrder(q Quadrant) int {
	max := -1
	for _, t := range c.Todos {
		if t.Quadrant == q && t.Order > max {
			max = t.Order
		}
	}
	return max
}

// ByQuadrant returns copies of the tasks in q sorted by ascending order.
// Ties keep document order.
func (c *Collection) ByQuadrant(q Quadrant) []Task {
	out := []Task{}
	for _, t := range c.Todos {
		if t.Quadrant == q {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// Touch stamps LastModified with now, pushing it forward by a millisecond when
// the clock has not moved past the previous stamp.
func (c *Collection) Touch(now time.Time) {
	stamp := now.UTC().Truncate(time.Millisecond)
	if !stamp.After(c.LastModified) {
		stamp = c.LastModified.Add(time.Millisecond)
	}
	c.LastModified = stamp
	if c.Version == "" {
		c.Version = DocumentVersion
	}
}

// Clone returns a deep copy so callers can mutate without aliasing the original slice.
func (c *Collection) Clone() *Collection {
	out := *c
	out.Todos = make([]Task, len(c.Todos))
	copy(out.Todos, c.Todos)
	return &out
}
