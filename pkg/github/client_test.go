package github

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/harrisonrobin/quadra/pkg/github/githubtest"
	"github.com/harrisonrobin/quadra/pkg/index"
	"github.com/harrisonrobin/quadra/pkg/model"
)

const (
	testToken = "ghp_test"
	testRepo  = "octo/todos"
)

func newClient(t *testing.T, srv *githubtest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	c := New(opts...)
	c.Configure(testRepo, testToken)
	return c
}

func doc(tasks ...model.Task) *model.Collection {
	c := model.NewCollection()
	c.Todos = append(c.Todos, tasks...)
	c.Touch(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	return c
}

func TestConfigureDoesNoIO(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	if c.Configured() {
		t.Error("New client must not be configured")
	}
	c.Configure(testRepo, testToken)
	if !c.Configured() || c.Repo() != testRepo {
		t.Errorf("Expected configured client for %s", testRepo)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("Configure made %d requests", n)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := New()
	ctx := context.Background()
	if err := c.TestConnection(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("TestConnection: expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.Push(ctx, doc()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Push: expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.Pull(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Pull: expected ErrNotConfigured, got %v", err)
	}
	c.Configure("not-a-repo", testToken)
	if err := c.TestConnection(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected malformed repo to be rejected, got %v", err)
	}
}

func TestTestConnection(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	ctx := context.Background()

	c := newClient(t, srv)
	if err := c.TestConnection(ctx); !errors.Is(err, ErrRepoNotFound) {
		t.Errorf("Expected ErrRepoNotFound, got %v", err)
	}

	srv.AddRepo(testRepo)
	if err := c.TestConnection(ctx); err != nil {
		t.Errorf("Expected success, got %v", err)
	}

	c.Configure(testRepo, "wrong")
	err := c.TestConnection(ctx)
	if !errors.Is(err, ErrAuth) {
		t.Errorf("Expected ErrAuth, got %v", err)
	}
	if Message(err) != "GitHub rejected the access token" {
		t.Errorf("Unexpected message %q", Message(err))
	}
}

func TestCreatePrivateRepository(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	ctx := context.Background()

	c := New(WithBaseURL(srv.URL))
	c.Configure("", testToken)
	full, err := c.CreatePrivateRepository(ctx, "quadra-data")
	if err != nil {
		t.Fatalf("CreatePrivateRepository failed: %v", err)
	}
	if full != "octo/quadra-data" {
		t.Errorf("Expected octo/quadra-data, got %s", full)
	}
	if _, ok := srv.File(full, "README.md"); !ok {
		t.Error("Expected the repository to be seeded with an initial commit")
	}

	if _, err := c.CreatePrivateRepository(ctx, "quadra-data"); err == nil {
		t.Error("Expected an error when the repository already exists")
	}
}

func TestPullWithoutRemoteData(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	srv.AddRepo(testRepo)

	_, err := newClient(t, srv).Pull(context.Background())
	if !errors.Is(err, ErrRemoteDataNotFound) {
		t.Errorf("Expected ErrRemoteDataNotFound, got %v", err)
	}
}

func TestPushThenPullFromSecondInstance(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	srv.AddRepo(testRepo)
	ctx := context.Background()

	d1 := doc(
		model.Task{ID: "a", Title: "Taxes", Quadrant: model.UrgentImportant, Order: 0, CreatedAt: 1, UpdatedAt: 1},
		model.Task{ID: "b", Title: "Gym", Quadrant: model.NotUrgentImportant, Order: 0, CreatedAt: 2, UpdatedAt: 2},
	)

	first := newClient(t, srv)
	if _, err := first.Push(ctx, d1); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if _, ok := srv.File(testRepo, DefaultPath); !ok {
		t.Fatal("Expected push to create the remote file")
	}

	second := newClient(t, srv)
	got, err := second.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if !reflect.DeepEqual(got.Todos, d1.Todos) || !got.LastModified.Equal(d1.LastModified) || got.Version != d1.Version {
		t.Errorf("Pulled document differs:\n got %+v\nwant %+v", got, d1)
	}
}

func TestPushOverwritesRemoteEntirely(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	srv.AddRepo(testRepo)
	ctx := context.Background()

	local := newClient(t, srv)
	if _, err := local.Push(ctx, doc(model.Task{ID: "a", Title: "Original", Quadrant: model.UrgentImportant})); err != nil {
		t.Fatal(err)
	}

	// Another device pushes D2.
	other := newClient(t, srv)
	d2 := doc(model.Task{ID: "z", Title: "From laptop", Description: "remote only", Quadrant: model.UrgentNotImportant, Order: 9})
	if _, err := other.Push(ctx, d2); err != nil {
		t.Fatal(err)
	}

	d1prime := doc(model.Task{ID: "a", Title: "Edited locally", Quadrant: model.UrgentImportant})
	if _, err := local.Push(ctx, d1prime); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	raw, _ := srv.File(testRepo, DefaultPath)
	var remote map[string]any
	if err := json.Unmarshal(raw, &remote); err != nil {
		t.Fatal(err)
	}
	for key := range remote {
		if key != "todos" && key != "version" && key != "lastModified" {
			t.Errorf("Unexpected top-level field %q in remote document", key)
		}
	}
	got, err := model.ParseCollection(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Todos, d1prime.Todos) {
		t.Errorf("Expected remote to hold D1' only, got %+v", got.Todos)
	}
	for _, task := range got.Todos {
		if task.ID == "z" || task.Description == "remote only" {
			t.Errorf("Field from D2 survived: %+v", task)
		}
	}
}

func TestPushRetriesOnceOnStaleVersion(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	srv.AddRepo(testRepo)
	srv.SetFile(testRepo, DefaultPath, []byte(`{"todos":[]}`))
	ctx := context.Background()

	raced := false
	srv.OnPut = func(repo, path string) {
		if !raced {
			raced = true
			srv.SetFile(repo, path, []byte(`{"todos":[{"id":"late"}]}`))
		}
	}

	local := doc(model.Task{ID: "mine", Title: "mine", Quadrant: model.UrgentImportant})
	if _, err := newClient(t, srv).Push(ctx, local); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	raw, _ := srv.File(testRepo, DefaultPath)
	got, err := model.ParseCollection(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Todos) != 1 || got.Todos[0].ID != "mine" {
		t.Errorf("Expected local document to win, got %+v", got.Todos)
	}
}

func TestVersionIndexTracksPushAndPull(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	srv.AddRepo(testRepo)
	ctx := context.Background()

	idx, err := index.NewVersionIndex(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := newClient(t, srv, WithIndex(idx))
	if _, err := c.Push(ctx, doc()); err != nil {
		t.Fatal(err)
	}
	key := index.Key(testRepo, DefaultPath)
	pushed := idx.Get(key)
	if pushed == "" {
		t.Fatal("Expected push to record the new version")
	}

	srv.SetFile(testRepo, DefaultPath, []byte(`{"todos":[]}`))
	if _, err := c.Pull(ctx); err != nil {
		t.Fatal(err)
	}
	if idx.Get(key) == pushed {
		t.Error("Expected pull to record the remote version")
	}

	srv.RemoveFile(testRepo, DefaultPath)
	if _, err := c.Pull(ctx); !errors.Is(err, ErrRemoteDataNotFound) {
		t.Fatalf("Expected ErrRemoteDataNotFound, got %v", err)
	}
	if got := idx.Get(key); got != "" {
		t.Errorf("Expected the version of a deleted file to be forgotten, got %q", got)
	}
	reopened, err := index.NewVersionIndex(filepath.Dir(idx.Path))
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.Get(key); got != "" {
		t.Errorf("Expected the forgotten version to stay gone on disk, got %q", got)
	}
}

func TestPullMalformedRemote(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	srv.AddRepo(testRepo)
	srv.SetFile(testRepo, DefaultPath, []byte("not json"))

	_, err := newClient(t, srv).Pull(context.Background())
	if !errors.Is(err, model.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestServerErrorsAreRetryable(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	defer srv.Close()
	srv.AddRepo(testRepo)
	srv.FailRequests(1)

	_, err := newClient(t, srv).Pull(context.Background())
	if !Retryable(err) {
		t.Errorf("Expected retryable error, got %v", err)
	}
	if Retryable(ErrAuth) || Retryable(ErrRepoNotFound) {
		t.Error("Auth and not-found errors must not be retryable")
	}
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	srv := githubtest.NewServer(testToken, "octo")
	url := srv.URL
	srv.Close()

	c := New(WithBaseURL(url))
	c.Configure(testRepo, testToken)
	if err := c.TestConnection(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
