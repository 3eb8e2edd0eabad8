// Package syncer decides when the task document is pushed to or pulled from the remote.
//
// Automatic sync (pull on startup, push on shutdown, periodic push) is best effort:
// failures are logged and local data is kept. Manual PushNow and PullNow report
// their errors to the caller. A caller that abandons a PushNow or PullNow does not
// stop it; the operation runs to completion and persists its effect.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harrisonrobin/quadra/pkg/auth"
	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/github"
	"github.com/harrisonrobin/quadra/pkg/model"
	"github.com/harrisonrobin/quadra/pkg/repository"
	"github.com/harrisonrobin/quadra/pkg/retry"
)

// Remote is the sync client the orchestrator drives.
type Remote interface {
	Configure(repo, token string)
	Configured() bool
	Repo() string
	Push(ctx context.Context, doc *model.Collection) (time.Time, error)
	Pull(ctx context.Context) (*model.Collection, error)
}

type Orchestrator struct {
	repo   *repository.Repository
	remote Remote
	policy retry.Policy
	now    func() time.Time

	mu    sync.Mutex
	cron  *cron.Cron
	token string
}

type Option func(*Orchestrator)

// WithRetry sets the backoff used for the shutdown push. Only transient remote
// failures are retried.
func WithRetry(p retry.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithClock sets the clock used to stamp pulls.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(repo *repository.Repository, remote Remote, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:   repo,
		remote: remote,
		policy: retry.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.policy.Retryable = github.Retryable
	o.policy.Label = "sync push"
	return o
}

// Configure points the remote at repo with token. Runs already in progress finish
// against the previous target.
func (o *Orchestrator) Configure(repo, token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.configure(repo, token)
}

// configure retargets the remote unless it already points at repo with token.
func (o *Orchestrator) configure(repo, token string) {
	repo, token = strings.TrimSpace(repo), strings.TrimSpace(token)
	if o.remote.Configured() && o.remote.Repo() == repo && o.token == token {
		return
	}
	o.remote.Configure(repo, token)
	o.token = token
}

// syncConfig loads the settings and points the remote at the repository and
// token they name, so a changed setting always wins over an earlier Configure.
// A blank stored token falls back to $GITHUB_TOKEN. It returns nil when sync is
// switched off or incomplete.
func (o *Orchestrator) syncConfig(ctx context.Context) (*config.SyncConfig, error) {
	settings, err := o.repo.Store().LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	sc := settings.GitHubSync
	if sc == nil || !sc.Enabled || strings.TrimSpace(sc.Repo) == "" {
		return nil, nil
	}
	token, err := auth.ResolveToken(sc.Token)
	if err != nil {
		return nil, nil
	}
	o.configure(sc.Repo, token)
	return sc, nil
}

func (o *Orchestrator) recordSync(ctx context.Context, at time.Time) {
	store := o.repo.Store()
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		log.Printf("Warning: could not record sync time: %v", err)
		return
	}
	if settings.GitHubSync == nil {
		settings.GitHubSync = &config.SyncConfig{}
	}
	settings.GitHubSync.LastSyncTime = model.Millis(at)
	if err := store.SaveSettings(ctx, settings); err != nil {
		log.Printf("Warning: could not record sync time: %v", err)
	}
}

// Startup pulls the remote document once and replaces the local one with it.
// It never fails: without sync, or on any error, local data is kept.
func (o *Orchestrator) Startup(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sc, err := o.syncConfig(ctx)
	if err != nil {
		log.Printf("Auto-sync: could not read settings, skipping pull: %v", err)
		return
	}
	if sc == nil {
		return
	}

	if _, err := o.pull(ctx); err != nil {
		if errors.Is(err, github.ErrRemoteDataNotFound) {
			log.Printf("Auto-sync: nothing on GitHub yet, keeping local data")
			return
		}
		log.Printf("Auto-sync pull failed, keeping local data: %v", err)
		return
	}
	log.Printf("Auto-sync: pulled task document from %s", sc.Repo)
}

// Shutdown pushes the local document, retrying transient failures within the
// retry policy, and returns once the push finished or gave up.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.Stop()

	o.mu.Lock()
	defer o.mu.Unlock()

	sc, err := o.syncConfig(ctx)
	if err != nil {
		log.Printf("Auto-sync: could not read settings, skipping push: %v", err)
		return
	}
	if sc == nil {
		return
	}

	_, err = retry.Value(ctx, o.policy, o.push)
	if err != nil {
		log.Printf("Auto-sync push failed: %v", err)
		return
	}
	log.Printf("Auto-sync: pushed task document to %s", sc.Repo)
}

// PushNow pushes the local document once.
func (o *Orchestrator) PushNow(ctx context.Context) (time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ensureConfigured(ctx); err != nil {
		return time.Time{}, err
	}
	return o.push(ctx)
}

// PullNow pulls the remote document once and makes it the local document.
func (o *Orchestrator) PullNow(ctx context.Context) (*model.Collection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ensureConfigured(ctx); err != nil {
		return nil, err
	}
	return o.pull(ctx)
}

func (o *Orchestrator) ensureConfigured(ctx context.Context) error {
	sc, err := o.syncConfig(ctx)
	if err != nil {
		return err
	}
	if sc == nil || !o.remote.Configured() {
		return github.ErrNotConfigured
	}
	return nil
}

func (o *Orchestrator) push(ctx context.Context) (time.Time, error) {
	doc, err := o.repo.List(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load local tasks: %w", err)
	}
	at, err := o.remote.Push(ctx, doc)
	if err != nil {
		return time.Time{}, err
	}
	o.recordSync(ctx, at)
	return at, nil
}

func (o *Orchestrator) pull(ctx context.Context) (*model.Collection, error) {
	doc, err := o.remote.Pull(ctx)
	if err != nil {
		return nil, err
	}
	saved, err := o.repo.Replace(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to store pulled tasks: %w", err)
	}
	o.recordSync(ctx, o.now())
	return saved, nil
}

// StartAutoSync pushes every interval until Stop or Shutdown.
func (o *Orchestrator) StartAutoSync(interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("auto-sync interval must be at least one second, got %s", interval)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cron != nil {
		return fmt.Errorf("auto-sync is already running")
	}

	c := cron.New()
	schedule := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	if _, err := c.AddFunc(schedule, o.autoPush); err != nil {
		return fmt.Errorf("schedule auto-sync: %w", err)
	}
	c.Start()
	o.cron = c
	log.Printf("Auto-sync: pushing every %s", interval)
	return nil
}

func (o *Orchestrator) autoPush() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := o.PushNow(ctx); err != nil && !errors.Is(err, github.ErrNotConfigured) {
		log.Printf("Auto-sync push failed: %v", err)
	}
}

// Stop ends periodic pushes and waits for a running one to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	c := o.cron
	o.cron = nil
	o.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
