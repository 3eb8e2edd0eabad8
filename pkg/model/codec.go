package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrMalformed marks a task document that could not be parsed.
var ErrMalformed = errors.New("malformed task document")

type rawTask struct {
	Task
	Order *int `json:"order"`
}

type rawCollection struct {
	Todos        []rawTask `json:"todos"`
	Version      string    `json:"version"`
	LastModified time.Time `json:"lastModified"`
}

// DecodeCollection parses a task document from r.
// Both the current {"todos": [...]} shape and a bare task array are accepted.
func DecodeCollection(r io.Reader) (*Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read task document: %w", err)
	}
	return ParseCollection(data)
}

// ParseCollection is DecodeCollection for an in-memory document.
func ParseCollection(data []byte) (*Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	var raw rawCollection
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw.Todos); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	c := &Collection{
		Todos:        make([]Task, 0, len(raw.Todos)),
		Version:      raw.Version,
		LastModified: raw.LastModified,
	}
	if c.Version == "" {
		c.Version = DocumentVersion
	}
	for i, rt := range raw.Todos {
		t := rt.Task
		// Documents written before ordering existed fall back to file position.
		if rt.Order != nil {
			t.Order = *rt.Order
		} else {
			t.Order = i
		}
		c.Todos = append(c.Todos, t)
	}
	return c, nil
}

// EncodeCollection writes c as indented JSON.
func EncodeCollection(w io.Writer, c *Collection) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode task document: %w", err)
	}
	return nil
}

// MarshalCollection is EncodeCollection into a byte slice.
func MarshalCollection(c *Collection) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeCollection(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
