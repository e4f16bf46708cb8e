package ports

import (
	"context"
	"time"

	"github.com/ctxforge/ctxcache/internal/domain"
)

type TranscriptInfo struct {
	Name      string
	Turns     int
	UpdatedAt time.Time
}

type TranscriptRepository interface {
	Load(ctx context.Context, name string) (*domain.Conversation, error)
	Save(ctx context.Context, name string, conversation *domain.Conversation) error
	List(ctx context.Context) ([]TranscriptInfo, error)
	Delete(ctx context.Context, name string) error
}
