package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type TurnID int64

type Turn struct {
	ID        TurnID
	Role      Role
	Text      string
	CreatedAt time.Time
}

const (
	reasoningOpen  = "<think>"
	reasoningClose = "</think>"
)

// ResponseText returns the turn body with reasoning blocks removed and
// surrounding whitespace trimmed. An unterminated block swallows the rest of
// the text, so an in-progress reasoning-only turn yields an empty response.
func (t Turn) ResponseText() string {
	return strings.TrimSpace(stripReasoning(t.Text))
}

func stripReasoning(text string) string {
	open := strings.Index(text, reasoningOpen)
	if open < 0 {
		return text
	}

	var b strings.Builder
	for open >= 0 {
		b.WriteString(text[:open])
		rest := text[open+len(reasoningOpen):]
		end := strings.Index(rest, reasoningClose)
		if end < 0 {
			return b.String()
		}
		text = rest[end+len(reasoningClose):]
		open = strings.Index(text, reasoningOpen)
	}
	b.WriteString(text)
	return b.String()
}
