package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/backplane/internal/llm"
)

// Summarizer turns a session's header and event list into a structured
// Summary.
type Summarizer interface {
	Summarize(ctx context.Context, session Session) (*Summary, error)
}

const summarizerSystemPrompt = `You summarize a single agent work session for another agent to pick up later.
Return ONLY a JSON object with this exact shape, no prose, no markdown fence:
{"summary": string, "key_events": [string], "decisions_made": [string], "outcomes": [string], "next_steps": [string]}`

// LLMSummarizer calls an LLM client against a formatted session header and
// event list.
type LLMSummarizer struct {
	client llm.Client
}

var _ Summarizer = (*LLMSummarizer)(nil)

// NewLLMSummarizer builds a Summarizer backed by client.
func NewLLMSummarizer(client llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

// Summarize runs the LLM against (session header, formatted event list) and
// returns the structured summary object.
func (s *LLMSummarizer) Summarize(ctx context.Context, session Session) (*Summary, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no LLM client configured for session summarization")
	}

	userPrompt := formatSessionHeader(session) + "\n\n" + formatEventList(session.Events)

	var summary Summary
	if err := llm.CompleteJSON(ctx, s.client, summarizerSystemPrompt, userPrompt, &summary); err != nil {
		return nil, fmt.Errorf("failed to summarize session: %w", err)
	}
	return &summary, nil
}

func formatSessionHeader(session Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\nAgent: %s\n", session.ID, session.Agent)
	if session.Project != "" {
		fmt.Fprintf(&b, "Project: %s\n", session.Project)
	}
	if session.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", session.Context)
	}
	fmt.Fprintf(&b, "Started: %s\n", session.StartedAt.Format("2006-01-02T15:04:05Z"))
	if session.EndedAt != nil {
		fmt.Fprintf(&b, "Ended: %s\n", session.EndedAt.Format("2006-01-02T15:04:05Z"))
	}
	return b.String()
}

func formatEventList(events []SessionEvent) string {
	if len(events) == 0 {
		return "No events recorded."
	}
	var b strings.Builder
	b.WriteString("Events:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "- [%s] %s\n", e.Timestamp.Format("15:04:05"), formatEventText(e.Type, e.Payload))
	}
	return b.String()
}
