// Package api is the boundary the presentation layer talks to. It groups the
// task, storage, settings and GitHub operations and turns sync failures into
// user-facing results.
package api

import (
	"context"
	"time"

	"github.com/harrisonrobin/quadra/pkg/github"
	"github.com/harrisonrobin/quadra/pkg/model"
	"github.com/harrisonrobin/quadra/pkg/repository"
)

// Syncer runs manual sync actions and owns the shared GitHub client.
type Syncer interface {
	Configure(repo, token string)
	PushNow(ctx context.Context) (time.Time, error)
	PullNow(ctx context.Context) (*model.Collection, error)
}

// Service bundles the four groups of operations.
type Service struct {
	Todos    *Todos
	Storage  *Storage
	Settings *Settings
	GitHub   *GitHub
}

type options struct {
	newClient func() *github.Client
	opener    func(dir string) error
}

type Option func(*options)

// WithClientFactory sets how throwaway clients for Test and CreateRepo are built.
func WithClientFactory(f func() *github.Client) Option {
	return func(o *options) { o.newClient = f }
}

// WithOpener replaces the command that shows a folder in the file manager.
func WithOpener(f func(dir string) error) Option {
	return func(o *options) { o.opener = f }
}

func New(repo *repository.Repository, sync Syncer, opts ...Option) *Service {
	o := options{
		newClient: func() *github.Client { return github.New() },
		opener:    openFolder,
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := repo.Store()
	return &Service{
		Todos:    &Todos{repo: repo},
		Storage:  &Storage{store: store, opener: o.opener},
		Settings: &Settings{store: store, sync: sync},
		GitHub:   &GitHub{store: store, sync: sync, newClient: o.newClient},
	}
}
