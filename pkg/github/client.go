// Package github synchronizes the task document with one file in a GitHub repository.
//
// The whole document is the unit of sync and conflicts are resolved by last write
// wins: Push replaces the remote file with the local document and Pull replaces
// the local document with the remote file. The file's blob SHA is read right
// before each write only because the contents API requires it for updates.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harrisonrobin/quadra/pkg/auth"
	"github.com/harrisonrobin/quadra/pkg/index"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultPath    = "todo.json"

	apiVersion = "2022-11-28"
)

// Client is a GitHub contents API client bound to one repository and token.
type Client struct {
	baseURL string
	path    string
	base    *http.Client
	index   *index.VersionIndex
	now     func() time.Time

	repo  string
	token string
	http  *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithPath sets the path of the synced file inside the repository.
func WithPath(p string) Option {
	return func(c *Client) { c.path = strings.TrimLeft(p, "/") }
}

// WithHTTPClient sets the client whose transport carries the authenticated requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithIndex records the version token of every push and pull in idx.
func WithIndex(idx *index.VersionIndex) Option {
	return func(c *Client) { c.index = idx }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		path:    DefaultPath,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure sets the target repository ("owner/repo") and access token. No request is made.
func (c *Client) Configure(repo, token string) {
	c.repo = strings.TrimSpace(repo)
	c.token = strings.TrimSpace(token)
	c.http = auth.NewHTTPClient(c.base, c.token)
}

// Configured reports whether both a repository and a token are set.
func (c *Client) Configured() bool {
	return c.repo != "" && c.token != "" && c.http != nil
}

func (c *Client) Repo() string { return c.repo }

func (c *Client) Path() string { return c.path }

func (c *Client) repoPath() (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	owner, name, ok := strings.Cut(c.repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: repository %q is not in owner/repo form", ErrNotConfigured, c.repo)
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name), nil
}

func (c *Client) contentsPath() (string, error) {
	repoPath, err := c.repoPath()
	if err != nil {
		return "", err
	}
	segments := strings.Split(c.path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return repoPath + "/contents/" + strings.Join(segments, "/"), nil
}

// do sends one API request. A 404 becomes notFound; out, when not nil, receives the JSON body.
func (c *Client) do(ctx context.Context, method, path string, in, out any, notFound error) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classify(resp, notFound); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode GitHub response: %w", err)
	}
	return nil
}

type repository struct {
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// TestConnection fetches the repository metadata. A missing repository yields ErrRepoNotFound.
func (c *Client) TestConnection(ctx context.Context) error {
	path, err := c.repoPath()
	if err != nil {
		return err
	}
	var repo repository
	return c.do(ctx, http.MethodGet, path, nil, &repo, ErrRepoNotFound)
}

// CreatePrivateRepository creates a private repository with an initial commit and
// returns its "owner/name". Only the token needs to be configured.
func (c *Client) CreatePrivateRepository(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("repository name must not be empty")
	}
	if c.token == "" || c.http == nil {
		return "", ErrNotConfigured
	}

	in := map[string]any{
		"name":        name,
		"private":     true,
		"description": "quadra task sync",
		"auto_init":   true,
	}
	var created repository
	if err := c.do(ctx, http.MethodPost, "/user/repos", in, &created, nil); err != nil {
		return "", err
	}
	log.Printf("Created private repository %s", created.FullName)
	return created.FullName, nil
}

func (c *Client) rememberVersion(sha string) {
	if c.index == nil || sha == "" {
		return
	}
	c.index.Set(index.Key(c.repo, c.path), sha)
	if err := c.index.Save(); err != nil {
		log.Printf("Warning: could not save remote version index: %v", err)
	}
}

// forgetVersion drops the recorded version once the remote file is gone.
func (c *Client) forgetVersion() {
	if c.index == nil {
		return
	}
	c.index.Remove(index.Key(c.repo, c.path))
	if err := c.index.Save(); err != nil {
		log.Printf("Warning: could not save remote version index: %v", err)
	}
}

func (c *Client) knownVersion() string {
	if c.index == nil {
		return ""
	}
	return c.index.Get(index.Key(c.repo, c.path))
}
