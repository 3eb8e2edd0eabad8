package api

import (
	"context"
	"errors"
	"log"

	"github.com/harrisonrobin/quadra/pkg/model"
	"github.com/harrisonrobin/quadra/pkg/repository"
)

type Todos struct {
	repo *repository.Repository
}

// Load returns the task document. A corrupt local document is reported and an
// empty one returned so the app can still start.
func (t *Todos) Load(ctx context.Context) (*model.Collection, error) {
	c, err := t.repo.List(ctx)
	if errors.Is(err, model.ErrMalformed) {
		log.Printf("Warning: local task document is corrupt, starting empty: %v", err)
		return model.NewCollection(), nil
	}
	return c, err
}

// Save replaces the whole task list.
func (t *Todos) Save(ctx context.Context, todos []model.Task) (*model.Collection, error) {
	c := model.NewCollection()
	c.Todos = append(c.Todos, todos...)
	return t.repo.Replace(ctx, c)
}

func (t *Todos) Create(ctx context.Context, q model.Quadrant, title, description string) (model.Task, error) {
	return t.repo.Add(ctx, q, title, description)
}

func (t *Todos) Update(ctx context.Context, id string, patch repository.Patch) (model.Task, error) {
	return t.repo.Update(ctx, id, patch)
}

func (t *Todos) Delete(ctx context.Context, id string) error {
	return t.repo.Delete(ctx, id)
}

func (t *Todos) Move(ctx context.Context, id string, q model.Quadrant) (model.Task, error) {
	return t.repo.Move(ctx, id, q)
}

func (t *Todos) Reorder(ctx context.Context, q model.Quadrant, movedID, targetID string) ([]model.Task, error) {
	return t.repo.Reorder(ctx, q, movedID, targetID)
}

func (t *Todos) ByQuadrant(ctx context.Context, q model.Quadrant) ([]model.Task, error) {
	return t.repo.ByQuadrant(ctx, q)
}
