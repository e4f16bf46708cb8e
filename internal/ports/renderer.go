package ports

import "github.com/ctxforge/ctxcache/internal/domain"

// PromptRenderer turns selected turns into the engine's prompt text. When
// continuingLastTurn is set the final assistant block stays open so
// generation extends it instead of starting a new reply.
type PromptRenderer interface {
	Render(turns []domain.Turn, systemText, template string, continuingLastTurn bool) (string, error)
}
