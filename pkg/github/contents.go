package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/quadra/pkg/model"
)

// fileContent is the subset of the contents API file object that sync needs.
type fileContent struct {
	Type     string `json:"type"`
	SHA      string `json:"sha"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

func (c *Client) getFile(ctx context.Context) (*fileContent, error) {
	path, err := c.contentsPath()
	if err != nil {
		return nil, err
	}
	var file fileContent
	if err := c.do(ctx, http.MethodGet, path, nil, &file, ErrRemoteDataNotFound); err != nil {
		if errors.Is(err, ErrRemoteDataNotFound) {
			c.forgetVersion()
		}
		return nil, err
	}
	if file.Type != "" && file.Type != "file" {
		return nil, fmt.Errorf("%s in %s is a %s, not a file", c.path, c.repo, file.Type)
	}
	return &file, nil
}

// currentSHA returns the blob SHA of the remote file, or "" when it does not exist yet.
func (c *Client) currentSHA(ctx context.Context) (string, error) {
	file, err := c.getFile(ctx)
	if err != nil {
		if errors.Is(err, ErrRemoteDataNotFound) {
			return "", nil
		}
		return "", err
	}
	return file.SHA, nil
}

func (c *Client) putFile(ctx context.Context, content, sha string) (string, error) {
	path, err := c.contentsPath()
	if err != nil {
		return "", err
	}
	in := putRequest{
		Message: fmt.Sprintf("Update %s - %s", c.path, c.now().UTC().Format(time.RFC3339)),
		Content: content,
		SHA:     sha,
	}
	var out putResponse
	if err := c.do(ctx, http.MethodPut, path, in, &out, ErrRepoNotFound); err != nil {
		return "", err
	}
	return out.Content.SHA, nil
}

// staleVersion reports whether a PUT failed because the SHA we sent is no longer current.
func staleVersion(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusUnprocessableEntity && strings.Contains(gerr.Body, "sha")
}

// Push replaces the remote file with doc and returns when the write happened.
// If the file changed between reading its SHA and writing, the SHA is read once
// more and the write repeated: the local document wins either way.
func (c *Client) Push(ctx context.Context, doc *model.Collection) (time.Time, error) {
	if _, err := c.contentsPath(); err != nil {
		return time.Time{}, err
	}

	data, err := model.MarshalCollection(doc)
	if err != nil {
		return time.Time{}, err
	}
	content := base64.StdEncoding.EncodeToString(data)

	sha, err := c.currentSHA(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if known := c.knownVersion(); known != "" && sha != "" && known != sha {
		log.Printf("Warning: %s in %s changed since the last sync; overwriting it with the local copy", c.path, c.repo)
	}

	newSHA, err := c.putFile(ctx, content, sha)
	if err != nil && staleVersion(err) {
		log.Printf("Warning: %s in %s changed during push, retrying with the current version: %v", c.path, c.repo, err)
		if sha, err = c.currentSHA(ctx); err != nil {
			return time.Time{}, err
		}
		newSHA, err = c.putFile(ctx, content, sha)
	}
	if err != nil {
		return time.Time{}, err
	}

	c.rememberVersion(newSHA)
	return c.now(), nil
}

// Pull fetches and parses the remote task document. ErrRemoteDataNotFound means
// nothing has been pushed yet.
func (c *Client) Pull(ctx context.Context) (*model.Collection, error) {
	file, err := c.getFile(ctx)
	if err != nil {
		return nil, err
	}
	if file.Encoding != "" && file.Encoding != "base64" {
		return nil, fmt.Errorf("%w: unsupported remote encoding %q", model.ErrMalformed, file.Encoding)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformed, err)
	}
	doc, err := model.ParseCollection(raw)
	if err != nil {
		return nil, err
	}

	c.rememberVersion(file.SHA)
	return doc, nil
}
