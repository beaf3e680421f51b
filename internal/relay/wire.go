package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sandeepkv93/realtime-hub/internal/service"
)

// CompletionBody is the request sent to a chat completions backend. Messages
// stay raw so caller turns are forwarded as sent, and temperature and
// max_tokens are always present even when zero.
type CompletionBody struct {
	Model       string            `json:"model"`
	Messages    []json.RawMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float32           `json:"temperature"`
	Stream      bool              `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func systemMessage(content string) json.RawMessage {
	raw, _ := json.Marshal(wireMessage{Role: openai.ChatMessageRoleSystem, Content: content})
	return raw
}

type turn struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// text returns the turn's content when it is a plain string.
func (t turn) text() string {
	var s string
	if json.Unmarshal(t.Content, &s) != nil {
		return ""
	}
	return s
}

// decodeTurns reads the role and content of each caller turn without
// altering the raw messages.
func decodeTurns(history []json.RawMessage) ([]turn, error) {
	out := make([]turn, 0, len(history))
	for i, raw := range history {
		var t turn
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("%w: messages[%d] is not a chat message", service.ErrInvalidArgument, i)
		}
		if strings.TrimSpace(t.Role) == "" {
			return nil, fmt.Errorf("%w: messages[%d] has no role", service.ErrInvalidArgument, i)
		}
		out = append(out, t)
	}
	return out, nil
}
