// Package pattern implements the cross-session pattern store: reusable
// solutions harvested from session activity, searchable by domain and by
// semantic similarity. It follows the same dialect-branching SQL store
// shape internal/memory uses for sessions, paired with an LLM-backed
// Extractor grounded on the source project's pattern harvesting service.
package pattern

import (
	"strings"
	"time"

	"github.com/kadirpekel/backplane/internal/apperr"
)

// Type is the behavioral classification of a Pattern.
type Type string

const (
	TypeSuccess   Type = "success"
	TypeFailure   Type = "failure"
	TypeTechnical Type = "technical"
	TypeProcess   Type = "process"
)

// validTypes is the set Type values are checked against.
var validTypes = map[Type]struct{}{
	TypeSuccess:   {},
	TypeFailure:   {},
	TypeTechnical: {},
	TypeProcess:   {},
}

// ParseType normalizes s (any case) to a canonical Type, or reports
// apperr.Validation if it names none of success/failure/technical/process.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validTypes[t]; ok {
		return t, nil
	}
	return "", apperr.Validation("unrecognized pattern type %q", s)
}

// Pattern is a reusable behavioral or technical lesson discovered during a
// session.
type Pattern struct {
	ID          string
	Type        Type
	Domain      string
	Title       string
	Description string
	Action      string
	Outcome     string
	Context     map[string]any
	Metadata    map[string]any
	Confidence  float64
	CreatedBy   string
	UsageCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SearchResult pairs a Pattern with its semantic-search similarity score.
type SearchResult struct {
	Pattern Pattern
	Score   float32
}

// Stats summarizes a single pattern's observed usage: how many times it was
// observed and, among observations that carried a rating, their average.
type Stats struct {
	Pattern          Pattern
	ObservationCount int
	AverageRating    float64
	LastUsedAt       *time.Time
}

// ListFilter narrows List.
type ListFilter struct {
	Type   Type
	Domain string
	Limit  int
}

// Candidate is one LLM-proposed pattern awaiting a confidence check before
// harvesting.
type Candidate struct {
	Type        string         `json:"type"`
	Domain      string         `json:"domain"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Action      string         `json:"action"`
	Outcome     string         `json:"outcome,omitempty"`
	Confidence  float64        `json:"confidence"`
	Context     map[string]any `json:"context,omitempty"`
}

// Observation is a single recorded instance of a Pattern being applied.
type Observation struct {
	ID            string
	PatternID     string
	SessionID     string
	SuccessRating *int
	Feedback      string
	CreatedAt     time.Time
}
