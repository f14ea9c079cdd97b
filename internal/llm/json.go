package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// CompleteJSON calls client.Complete and unmarshals the response into v,
// stripping a markdown code fence if the model wrapped its JSON in one
// despite an explicit "return only JSON" instruction.
func CompleteJSON(ctx context.Context, client Client, systemPrompt, userPrompt string, v any) error {
	text, err := client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(extractJSON(text)), v)
}

// extractJSON strips a leading/trailing ```json (or bare ```) fence around a
// JSON payload.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
