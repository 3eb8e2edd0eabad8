// Package repository is the only writer of the task document.
//
// Every mutation loads the current document, changes it and saves it back in full,
// retrying transient storage failures with the shared backoff policy. The repository
// holds no lock: callers are expected to issue mutations one at a time, and two
// unserialized mutations can lose one of the updates.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/quadra/pkg/model"
	"github.com/harrisonrobin/quadra/pkg/retry"
	"github.com/harrisonrobin/quadra/pkg/storage"
)

var (
	ErrValidation = errors.New("invalid task")
	ErrNotFound   = errors.New("task not found")
)

// Repository mediates all task mutations.
type Repository struct {
	store  storage.Store
	policy retry.Policy
	now    func() time.Time
	newID  func() string
}

type Option func(*Repository)

// WithRetry replaces the backoff policy. Its Retryable predicate is always
// restricted to transient storage errors.
func WithRetry(p retry.Policy) Option {
	return func(r *Repository) { r.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) { r.newID = newID }
}

func New(store storage.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		policy: retry.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy.Retryable = storage.Transient
	return r
}

// Store returns the underlying document store.
func (r *Repository) Store() storage.Store {
	return r.store
}

// mutate runs one load-change-save cycle under the retry policy. fn reports
// whether it changed the document; unchanged documents are not saved.
func (r *Repository) mutate(ctx context.Context, op string, fn func(c *model.Collection) (bool, error)) error {
	p := r.policy
	p.Label = "repository " + op
	return retry.Do(ctx, p, func(ctx context.Context) error {
		c, err := r.store.Load(ctx)
		if err != nil {
			return err
		}
		changed, err := fn(c)
		if err != nil || !changed {
			return err
		}
		return r.store.Save(ctx, c)
	})
}

func (r *Repository) load(ctx context.Context) (*model.Collection, error) {
	p := r.policy
	p.Label = "repository load"
	return retry.Value(ctx, p, r.store.Load)
}

// List returns the whole task document.
func (r *Repository) List(ctx context.Context) (*model.Collection, error) {
	return r.load(ctx)
}

// ByQuadrant returns the tasks of q in display order.
func (r *Repository) ByQuadrant(ctx context.Context, q model.Quadrant) ([]model.Task, error) {
	c, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.ByQuadrant(q), nil
}

// Add creates a task at the end of q.
func (r *Repository) Add(ctx context.Context, q model.Quadrant, title, description string) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if !q.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown quadrant %q", ErrValidation, q)
	}

	var created model.Task
	err := r.mutate(ctx, "add", func(c *model.Collection) (bool, error) {
		now := model.Millis(r.now())
		created = model.Task{
			ID:          r.newID(),
			Title:       title,
			Description: description,
			Quadrant:    q,
			Order:       c.MaxOrder(q) + 1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		c.Todos = append(c.Todos, created)
		return true, nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return created, nil
}

// Patch is a partial task update. Nil fields keep their current value.
type Patch struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Quadrant    *model.Quadrant `json:"quadrant,omitempty"`
	Order       *int            `json:"order,omitempty"`
}

func (p Patch) validate() (Patch, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return p, fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
		p.Title = &title
	}
	if p.Quadrant != nil && !p.Quadrant.Valid() {
		return p, fmt.Errorf("%w: unknown quadrant %q", ErrValidation, *p.Quadrant)
	}
	if p.Order != nil && *p.Order < 0 {
		return p, fmt.Errorf("%w: order must not be negative", ErrValidation)
	}
	return p, nil
}

// Update merges patch into the task with the given id and returns the result.
// A quadrant change without an explicit order appends the task to its new quadrant.
// An explicit order is a position: the task is inserted there (clamped to the end)
// and its quadrant is renumbered 0..n-1, so orders stay unique.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) (model.Task, error) {
	patch, err := patch.validate()
	if err != nil {
		return model.Task{}, err
	}

	var updated model.Task
	err = r.mutate(ctx, "update", func(c *model.Collection) (bool, error) {
		i := c.Index(id)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		t := c.Todos[i]
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Quadrant != nil && *patch.Quadrant != t.Quadrant {
			t.Quadrant = *patch.Quadrant
			if patch.Order == nil {
				t.Order = c.MaxOrder(t.Quadrant) + 1
			}
		}
		now := model.Millis(r.now())
		t.UpdatedAt = now
		c.Todos[i] = t
		if patch.Order != nil {
			placeAt(c, t, *patch.Order, now)
		}
		updated = c.Todos[i]
		return true, nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return updated, nil
}

// Delete removes the task with the given id. Deleting a missing task is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.mutate(ctx, "delete", func(c *model.Collection) (bool, error) {
		i := c.Index(id)
		if i < 0 {
			log.Printf("Warning: task %s not found for deletion", id)
			return false, nil
		}
		c.Todos = append(c.Todos[:i], c.Todos[i+1:]...)
		return true, nil
	})
}

// Move puts the task at the end of quadrant q.
func (r *Repository) Move(ctx context.Context, id string, q model.Quadrant) (model.Task, error) {
	if !q.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown quadrant %q", ErrValidation, q)
	}

	var moved model.Task
	err := r.mutate(ctx, "move", func(c *model.Collection) (bool, error) {
		i := c.Index(id)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		t := c.Todos[i]
		t.Order = c.MaxOrder(q) + 1
		t.Quadrant = q
		t.UpdatedAt = model.Millis(r.now())
		c.Todos[i] = t
		moved = t
		return true, nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return moved, nil
}

// Reorder takes movedID out of q's display order and reinserts it at the index
// targetID held, then renumbers the whole quadrant 0..n-1. It returns the
// quadrant in its new order. Unknown ids and movedID == targetID leave the
// document untouched.
func (r *Repository) Reorder(ctx context.Context, q model.Quadrant, movedID, targetID string) ([]model.Task, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: unknown quadrant %q", ErrValidation, q)
	}

	var result []model.Task
	err := r.mutate(ctx, "reorder", func(c *model.Collection) (bool, error) {
		sorted := c.ByQuadrant(q)
		result = sorted
		if movedID == targetID {
			log.Printf("reorder %s: %s dropped onto itself, nothing to do", q, movedID)
			return false, nil
		}

		from, to := -1, -1
		for i, t := range sorted {
			switch t.ID {
			case movedID:
				from = i
			case targetID:
				to = i
			}
		}
		if from < 0 || to < 0 {
			log.Printf("Warning: reorder %s: %s or %s is not in this quadrant", q, movedID, targetID)
			return false, nil
		}

		result = Splice(sorted, from, to)
		return renumber(c, result, model.Millis(r.now())), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Splice returns a copy of tasks with the element at from removed and
// reinserted at index to.
func Splice(tasks []model.Task, from, to int) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	out = append(out, tasks[:from]...)
	out = append(out, tasks[from+1:]...)

	moved := tasks[from]
	out = append(out, model.Task{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

// placeAt puts t at index pos of its quadrant's display order and renumbers the quadrant.
func placeAt(c *model.Collection, t model.Task, pos int, now int64) {
	seq := make([]model.Task, 0, len(c.Todos))
	for _, other := range c.ByQuadrant(t.Quadrant) {
		if other.ID != t.ID {
			seq = append(seq, other)
		}
	}
	if pos > len(seq) {
		pos = len(seq)
	}
	seq = append(seq, model.Task{})
	copy(seq[pos+1:], seq[pos:])
	seq[pos] = t
	renumber(c, seq, now)
}

// renumber assigns order = position to every task in seq, writes the changes
// back into c and reports whether anything changed.
func renumber(c *model.Collection, seq []model.Task, now int64) bool {
	positions := make(map[string]int, len(seq))
	for i := range seq {
		seq[i].Order = i
		positions[seq[i].ID] = i
	}

	changed := false
	for i := range c.Todos {
		pos, ok := positions[c.Todos[i].ID]
		if !ok || c.Todos[i].Order == pos {
			continue
		}
		c.Todos[i].Order = pos
		c.Todos[i].UpdatedAt = now
		changed = true
	}
	for i := range seq {
		seq[i] = c.Todos[c.Index(seq[i].ID)]
	}
	return changed
}

// Replace overwrites the whole task list, as used by the presentation layer's
// bulk save and by a successful pull. Duplicate ids are rejected; a quadrant whose
// orders collide is renumbered in its current display order.
func (r *Repository) Replace(ctx context.Context, incoming *model.Collection) (*model.Collection, error) {
	next := incoming.Clone()
	if err := validateAll(next.Todos); err != nil {
		return nil, err
	}
	for _, q := range model.Quadrants() {
		if hasDuplicateOrders(next, q) {
			log.Printf("Warning: duplicate orders in %s, renumbering", q)
			renumber(next, next.ByQuadrant(q), model.Millis(r.now()))
		}
	}

	p := r.policy
	p.Label = "repository replace"
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		return r.store.Save(ctx, next)
	})
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func validateAll(todos []model.Task) error {
	seen := make(map[string]bool, len(todos))
	for i := range todos {
		t := &todos[i]
		if t.ID == "" {
			return fmt.Errorf("%w: task %d has no id", ErrValidation, i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate id %s", ErrValidation, t.ID)
		}
		seen[t.ID] = true
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			return fmt.Errorf("%w: task %s has an empty title", ErrValidation, t.ID)
		}
		if !t.Quadrant.Valid() {
			return fmt.Errorf("%w: task %s has unknown quadrant %q", ErrValidation, t.ID, t.Quadrant)
		}
		if t.Order < 0 {
			return fmt.Errorf("%w: task %s has a negative order", ErrValidation, t.ID)
		}
	}
	return nil
}

func hasDuplicateOrders(c *model.Collection, q model.Quadrant) bool {
	seen := make(map[int]bool)
	for _, t := range c.Todos {
		if t.Quadrant != q {
			continue
		}
		if seen[t.Order] {
			return true
		}
		seen[t.Order] = true
	}
	return false
}
