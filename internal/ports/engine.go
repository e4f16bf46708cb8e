package ports

import "github.com/ctxforge/ctxcache/internal/domain"

// Engine is the sequential inference engine whose working memory the cache
// manager mirrors. Implementations hold one resident sequence; callers
// serialize all mutating calls.
type Engine interface {
	Tokenize(text string, addLeadingMarker bool) ([]domain.Token, error)
	DecodeBatch(tokens []domain.Token, positions []int, wantOutput []bool) error
	InvalidateFrom(position int)
	SampleNext() (domain.Token, error)
	// TokenText may return a partial UTF-8 fragment.
	TokenText(token domain.Token) []byte
	IsEndMarker(token domain.Token) bool
	MaxBatchSize() int
	ContextCapacity() int
}
