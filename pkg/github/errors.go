package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	ErrNotConfigured      = errors.New("GitHub sync is not configured")
	ErrRepoNotFound       = errors.New("repository not found")
	ErrRemoteDataNotFound = errors.New("no task document on GitHub yet")
	ErrAuth               = errors.New("GitHub rejected the access token")
	ErrUnavailable        = errors.New("GitHub is unavailable")
	ErrConflict           = errors.New("remote document changed during the update")
)

// Retryable reports whether err is a transient failure worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Message turns err into text fit for the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "GitHub sync is not configured"
	case errors.Is(err, ErrRepoNotFound):
		return "Repository does not exist"
	case errors.Is(err, ErrRemoteDataNotFound):
		return "Remote data does not exist yet"
	case errors.Is(err, ErrAuth):
		return "GitHub rejected the access token"
	case errors.Is(err, ErrUnavailable):
		return "GitHub could not be reached, try again later"
	}
	return err.Error()
}

// githubError is the JSON body GitHub sends with failed requests.
type githubError struct {
	Message string `json:"message"`
}

// classify maps a failed response onto the package sentinels. notFound is the
// sentinel a 404 means for this particular call.
func classify(resp *http.Response, notFound error) error {
	err := googleapi.CheckResponse(resp)
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	msg := gerr.Message
	var body githubError
	if jsonErr := json.Unmarshal([]byte(gerr.Body), &body); jsonErr == nil && body.Message != "" {
		msg = body.Message
	}
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}

	switch {
	case gerr.Code == http.StatusNotFound && notFound != nil:
		return fmt.Errorf("%w: %s", notFound, msg)
	case gerr.Code == http.StatusForbidden && gerr.Header.Get("X-RateLimit-Remaining") == "0":
		return fmt.Errorf("%w: rate limited: %s", ErrUnavailable, msg)
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, msg)
	case gerr.Code == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return fmt.Errorf("%w: %s (HTTP %d)", ErrUnavailable, msg, gerr.Code)
	}
	return fmt.Errorf("github: %s (HTTP %d): %w", msg, gerr.Code, gerr)
}
