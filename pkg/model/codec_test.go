package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseCollection(t *testing.T) {
	input := `{
		"todos": [
			{
				"id": "f45a05b3-c12e-42e5-9c9c-333333333333",
				"title": "File taxes",
				"description": "Before the 15th",
				"quadrant": "urgent-important",
				"order": 2,
				"createdAt": 1700000000000,
				"updatedAt": 1700000005000
			}
		],
		"version": "1.0.0",
		"lastModified": "2024-01-01T12:00:00.000Z"
	}`

	c, err := DecodeCollection(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCollection failed: %v", err)
	}
	if len(c.Todos) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(c.Todos))
	}
	task := c.Todos[0]
	if task.ID != "f45a05b3-c12e-42e5-9c9c-333333333333" {
		t.Errorf("Unexpected id %s", task.ID)
	}
	if task.Title != "File taxes" {
		t.Errorf("Expected title 'File taxes', got '%s'", task.Title)
	}
	if task.Quadrant != UrgentImportant {
		t.Errorf("Expected quadrant %s, got %s", UrgentImportant, task.Quadrant)
	}
	if task.Order != 2 {
		t.Errorf("Expected order 2, got %d", task.Order)
	}
	if task.CreatedAt != 1700000000000 || task.UpdatedAt != 1700000005000 {
		t.Errorf("Unexpected timestamps %d/%d", task.CreatedAt, task.UpdatedAt)
	}
	expected := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !c.LastModified.Equal(expected) {
		t.Errorf("Expected lastModified %v, got %v", expected, c.LastModified)
	}
}

func TestParseCollectionMissingOrderUsesPosition(t *testing.T) {
	input := `[
		{"id": "a", "title": "first", "quadrant": "urgent-important"},
		{"id": "b", "title": "second", "quadrant": "urgent-important"}
	]`

	c, err := ParseCollection([]byte(input))
	if err != nil {
		t.Fatalf("ParseCollection failed: %v", err)
	}
	if c.Version != DocumentVersion {
		t.Errorf("Expected default version, got %q", c.Version)
	}
	if c.Todos[0].Order != 0 || c.Todos[1].Order != 1 {
		t.Errorf("Expected orders 0 and 1, got %d and %d", c.Todos[0].Order, c.Todos[1].Order)
	}
}

func TestParseCollectionMalformed(t *testing.T) {
	for _, input := range []string{"", "   ", "{not json", `{"todos": 5}`} {
		if _, err := ParseCollection([]byte(input)); !errors.Is(err, ErrMalformed) {
			t.Errorf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestEncodeCollectionShape(t *testing.T) {
	c := NewCollection()
	c.Todos = append(c.Todos, Task{ID: "a", Title: "x", Quadrant: UrgentNotImportant})
	c.Touch(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	data, err := MarshalCollection(c)
	if err != nil {
		t.Fatalf("MarshalCollection failed: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"todos": [`, `"version": "1.0.0"`, `"lastModified": "2024-05-01T08:00:00Z"`, `"quadrant": "urgent-not-important"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected encoded document to contain %s, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, `"description"`) {
		t.Errorf("Empty description should be omitted, got:\n%s", out)
	}
}
