package llm

import (
	"context"
	"strings"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the text-completion contract: role-tagged messages in, a single
// completion out. Implementations own transport-level retries; callers never
// retry.
type Client interface {
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// StripFence removes a surrounding markdown code fence if present. Models
// intermittently wrap SQL or JSON output in one; absence is fine.
func StripFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
