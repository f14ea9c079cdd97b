package pattern

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/backplane/internal/llm"
	"github.com/kadirpekel/backplane/internal/memory"
)

// minConfidence is the floor below which an extracted candidate is
// discarded rather than harvested.
const minConfidence = 0.6

const extractorSystemPrompt = `You review a single agent work session and identify reusable patterns:
approaches, fixes, or decisions worth surfacing to other agents facing a similar problem.
Return ONLY a JSON array, no prose, no markdown fence, of objects shaped:
{"type": one of "success"/"failure"/"technical"/"process", "domain": string, "title": string,
"description": string, "action": string, "outcome": string (optional), "confidence": number between 0 and 1, "context": object}
Return an empty array if nothing in the session is worth harvesting as a pattern.`

// Extractor loads a session's events, asks an LLM to propose patterns, and
// harvests every candidate that clears the confidence floor.
type Extractor struct {
	client llm.Client
	store  *Store
}

// NewExtractor builds an Extractor backed by client and store.
func NewExtractor(client llm.Client, store *Store) *Extractor {
	return &Extractor{client: client, store: store}
}

// ExtractFromSession runs the LLM pattern extractor against session and
// harvests every candidate with confidence >= 0.6, tagging it with the
// session it came from.
func (e *Extractor) ExtractFromSession(ctx context.Context, session memory.Session) ([]Pattern, error) {
	if e.client == nil {
		return nil, fmt.Errorf("no LLM client configured for pattern extraction")
	}

	userPrompt := formatSessionForExtraction(session)

	var candidates []Candidate
	if err := llm.CompleteJSON(ctx, e.client, extractorSystemPrompt, userPrompt, &candidates); err != nil {
		return nil, fmt.Errorf("failed to extract patterns: %w", err)
	}

	var harvested []Pattern
	for _, c := range candidates {
		if c.Confidence < minConfidence {
			continue
		}
		if c.Context == nil {
			c.Context = map[string]any{}
		}
		c.Context["source_session_id"] = session.ID

		patternType, err := ParseType(c.Type)
		if err != nil {
			slog.Warn("pattern extractor: discarding candidate with unrecognized type",
				"session_id", session.ID, "title", c.Title, "type", c.Type)
			continue
		}

		p, err := e.store.Harvest(ctx, Pattern{
			Type:        patternType,
			Domain:      c.Domain,
			Title:       c.Title,
			Description: c.Description,
			Action:      c.Action,
			Outcome:     c.Outcome,
			Context:     c.Context,
			Confidence:  c.Confidence,
			CreatedBy:   "pattern_extractor",
		})
		if err != nil {
			return harvested, fmt.Errorf("failed to harvest candidate %q: %w", c.Title, err)
		}
		harvested = append(harvested, p)
	}
	return harvested, nil
}

func formatSessionForExtraction(session memory.Session) string {
	text := fmt.Sprintf("Session %s (agent=%s, project=%s)\n", session.ID, session.Agent, session.Project)
	for _, ev := range session.Events {
		text += fmt.Sprintf("- [%s] %s: %v\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.Payload)
	}
	return text
}
