// Package githubtest provides an in-memory stand-in for the parts of the GitHub
// REST API that quadra uses.
package githubtest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

type file struct {
	content []byte
	sha     string
}

// Server is a fake GitHub API backed by maps.
type Server struct {
	*httptest.Server

	Token string
	Owner string

	mu       sync.Mutex
	repos    map[string]bool
	files    map[string]file
	failures int
	requests []string

	// OnPut runs before a PUT to the contents API is applied.
	OnPut func(repo, path string)
}

// NewServer starts a fake API that accepts token and creates repositories under owner.
func NewServer(token, owner string) *Server {
	s := &Server{
		Token: token,
		Owner: owner,
		repos: make(map[string]bool),
		files: make(map[string]file),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}", s.getRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", s.getContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", s.putContents)
	mux.HandleFunc("POST /user/repos", s.createRepo)

	s.Server = httptest.NewServer(s.middleware(mux))
	return s
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		fail := s.failures > 0
		if fail {
			s.failures--
		}
		s.mu.Unlock()

		if fail {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "Service Unavailable"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AddRepo registers an existing repository ("owner/name").
func (s *Server) AddRepo(fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[fullName] = true
}

// FailRequests makes the next n requests answer 503.
func (s *Server) FailRequests(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Requests returns "METHOD /path" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// File returns the stored content of path in repo.
func (s *Server) File(repo, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[repo+":"+path]
	return f.content, ok
}

// SetFile writes content directly, as another device's push would.
func (s *Server) SetFile(repo, path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[repo+":"+path] = file{content: content, sha: blobSHA(content)}
}

// RemoveFile deletes path from repo, as a manual cleanup on GitHub would.
func (s *Server) RemoveFile(repo, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, repo+":"+path)
}

func blobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func repoName(r *http.Request) string {
	return r.PathValue("owner") + "/" + r.PathValue("repo")
}

func (s *Server) getRepo(w http.ResponseWriter, r *http.Request) {
	name := repoName(r)
	s.mu.Lock()
	ok := s.repos[name]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"full_name": name, "private": true})
}

func (s *Server) getContents(w http.ResponseWriter, r *http.Request) {
	name := repoName(r)
	s.mu.Lock()
	f, ok := s.files[name+":"+r.PathValue("path")]
	exists := s.repos[name]
	s.mu.Unlock()
	if !exists || !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":     "file",
		"sha":      f.sha,
		"encoding": "base64",
		"content":  wrap(base64.StdEncoding.EncodeToString(f.content), 60),
	})
}

// wrap breaks s into lines of n characters the way the contents API does.
func wrap(s string, n int) string {
	var b strings.Builder
	for len(s) > n {
		b.WriteString(s[:n])
		b.WriteByte('\n')
		s = s[n:]
	}
	b.WriteString(s)
	b.WriteByte('\n')
	return b.String()
}

func (s *Server) putContents(w http.ResponseWriter, r *http.Request) {
	name := repoName(r)
	path := r.PathValue("path")

	var in struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Message == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request."})
		return
	}
	content, err := base64.StdEncoding.DecodeString(in.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}

	if s.OnPut != nil {
		s.OnPut(name, path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.repos[name] {
		notFound(w)
		return
	}
	key := name + ":" + path
	cur, exists := s.files[key]
	switch {
	case exists && in.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
		return
	case exists && in.SHA != cur.sha:
		writeJSON(w, http.StatusConflict, map[string]string{"message": fmt.Sprintf("%s does not match %s", path, in.SHA)})
		return
	}

	f := file{content: content, sha: blobSHA(content)}
	s.files[key] = f
	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"content": map[string]string{"sha": f.sha, "path": path}})
}

func (s *Server) createRepo(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Private  bool   `json:"private"`
		AutoInit bool   `json:"auto_init"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Repository creation failed."})
		return
	}
	full := s.Owner + "/" + in.Name

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repos[full] {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "name already exists on this account"})
		return
	}
	s.repos[full] = true
	if in.AutoInit {
		readme := []byte("# " + in.Name + "\n")
		s.files[full+":README.md"] = file{content: readme, sha: blobSHA(readme)}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"full_name": full, "private": in.Private})
}
