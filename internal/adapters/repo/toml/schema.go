package toml

import (
	"fmt"
	"time"

	"github.com/ctxforge/ctxcache/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version int          `toml:"version"`
	Anchor  int64        `toml:"anchor,omitempty"`
	Turns   []turnSchema `toml:"turns"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported transcript schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type turnSchema struct {
	ID        int64  `toml:"id"`
	Role      string `toml:"role"`
	Text      string `toml:"text,multiline"`
	CreatedAt string `toml:"created_at,omitempty"`
}

func toSchema(conversation *domain.Conversation) fileSchema {
	turns := conversation.Turns()
	encoded := make([]turnSchema, 0, len(turns))
	for _, turn := range turns {
		encoded = append(encoded, turnSchema{
			ID:        int64(turn.ID),
			Role:      string(turn.Role),
			Text:      turn.Text,
			CreatedAt: formatTime(turn.CreatedAt),
		})
	}

	return fileSchema{
		Version: currentSchemaVersion,
		Anchor:  int64(conversation.Anchor()),
		Turns:   encoded,
	}
}

func fromSchema(file fileSchema) (*domain.Conversation, error) {
	turns := make([]domain.Turn, 0, len(file.Turns))
	for _, entry := range file.Turns {
		role, err := domain.ParseRole(entry.Role)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", entry.ID, err)
		}
		turns = append(turns, domain.Turn{
			ID:        domain.TurnID(entry.ID),
			Role:      role,
			Text:      entry.Text,
			CreatedAt: parseTime(entry.CreatedAt),
		})
	}

	return domain.RestoreConversation(turns, domain.TurnID(file.Anchor)), nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
