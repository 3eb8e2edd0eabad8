package api

import (
	"context"
	"log"

	"github.com/harrisonrobin/quadra/pkg/github"
	"github.com/harrisonrobin/quadra/pkg/model"
	"github.com/harrisonrobin/quadra/pkg/storage"
)

// Result is what every GitHub action reports back. Failures are described in
// Message rather than returned as errors.
type Result struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Repo         string `json:"repo,omitempty"`
	LastSyncTime int64  `json:"lastSyncTime,omitempty"`
}

func failed(action string, err error) Result {
	log.Printf("Failed to %s: %v", action, err)
	return Result{Message: github.Message(err)}
}

type GitHub struct {
	store     storage.Store
	sync      Syncer
	newClient func() *github.Client
}

// Test checks that repo exists and token can read it, without touching the
// shared client.
func (g *GitHub) Test(ctx context.Context, repo, token string) Result {
	c := g.newClient()
	c.Configure(repo, token)
	if err := c.TestConnection(ctx); err != nil {
		return failed("test GitHub connection", err)
	}
	return Result{Success: true, Message: "Connection successful", Repo: c.Repo()}
}

// CreateRepo creates a private repository named name for the owner of token.
func (g *GitHub) CreateRepo(ctx context.Context, name, token string) Result {
	c := g.newClient()
	c.Configure("", token)
	full, err := c.CreatePrivateRepository(ctx, name)
	if err != nil {
		return failed("create GitHub repository", err)
	}
	return Result{Success: true, Message: "Repository created", Repo: full}
}

func (g *GitHub) Push(ctx context.Context) Result {
	at, err := g.sync.PushNow(ctx)
	if err != nil {
		return failed("push to GitHub", err)
	}
	return Result{Success: true, Message: "Pushed to GitHub", LastSyncTime: model.Millis(at)}
}

// Pull replaces the local task document with the remote one.
func (g *GitHub) Pull(ctx context.Context) Result {
	doc, err := g.sync.PullNow(ctx)
	if err != nil {
		return failed("pull from GitHub", err)
	}
	r := Result{Success: true, Message: "Pulled from GitHub"}
	if settings, err := g.store.LoadSettings(ctx); err == nil && settings.GitHubSync != nil {
		r.LastSyncTime = settings.GitHubSync.LastSyncTime
	}
	log.Printf("Pulled %d tasks from GitHub", len(doc.Todos))
	return r
}
