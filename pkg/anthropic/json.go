package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// systemCacheTTL keeps the long extraction and autopsy prompts cached
// across a batch of calls.
const systemCacheTTL = "5m"

// Prompt is a single-turn request whose reply must be a JSON object.
type Prompt struct {
	Model     string
	MaxTokens int64
	System    string
	User      string
	Operation string // cost attribution label
}

// DecodeJSON sends p and decodes the JSON object in the reply into v.
func DecodeJSON(ctx context.Context, c Client, p Prompt, v any) error {
	resp, err := c.CreateMessage(ctx, MessageRequest{
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
		System:    []SystemBlock{{Text: p.System, CacheTTL: systemCacheTTL}},
		Messages:  []Message{{Role: "user", Content: p.User}},
	})
	if err != nil {
		return eris.Wrapf(err, "anthropic: %s request", p.Operation)
	}
	resp.Usage.LogCost(p.Model, p.Operation)

	text := resp.Text()
	if err := json.Unmarshal([]byte(CleanJSON(text)), v); err != nil {
		zap.L().Debug("anthropic: undecodable reply",
			zap.String("operation", p.Operation),
			zap.String("raw", truncate(text, 500)),
		)
		return eris.Wrapf(err, "anthropic: decode %s reply", p.Operation)
	}
	return nil
}

// CleanJSON extracts a JSON object from model output that may be wrapped in
// markdown code fences or surrounding prose.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
