package model

import "fmt"

// Quadrant is one of the four fixed buckets of the Eisenhower matrix.
type Quadrant string

const (
	UrgentImportant       Quadrant = "urgent-important"
	NotUrgentImportant    Quadrant = "not-urgent-important"
	UrgentNotImportant    Quadrant = "urgent-not-important"
	NotUrgentNotImportant Quadrant = "not-urgent-not-important"
)

var quadrants = []Quadrant{
	UrgentImportant,
	NotUrgentImportant,
	UrgentNotImportant,
	NotUrgentNotImportant,
}

var labels = map[Quadrant]string{
	UrgentImportant:       "Do first",
	NotUrgentImportant:    "Schedule",
	UrgentNotImportant:    "Delegate",
	NotUrgentNotImportant: "Eliminate",
}

// Quadrants returns the quadrants in matrix order (top-left to bottom-right).
func Quadrants() []Quadrant {
	out := make([]Quadrant, len(quadrants))
	copy(out, quadrants)
	return out
}

func (q Quadrant) Valid() bool {
	_, ok := labels[q]
	return ok
}

// Label returns the short action name shown above a quadrant.
func (q Quadrant) Label() string {
	if l, ok := labels[q]; ok {
		return l
	}
	return string(q)
}

// ParseQuadrant accepts the wire name of a quadrant or its 1-based matrix position ("1".."4").
func ParseQuadrant(s string) (Quadrant, error) {
	q := Quadrant(s)
	if q.Valid() {
		return q, nil
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '4' {
		return quadrants[s[0]-'1'], nil
	}
	return "", fmt.Errorf("unknown quadrant %q", s)
}
