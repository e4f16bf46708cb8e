package application

import (
	"context"
	"fmt"

	"github.com/ctxforge/ctxcache/internal/domain"
	"github.com/ctxforge/ctxcache/internal/ports"
)

// residentTracker owns the mirror of the token sequence the engine has
// actually ingested. Every mutation of engine memory goes through it, so the
// mirror stays truthful even after cancellation or a failed chunk.
type residentTracker struct {
	engine ports.Engine
	tokens []domain.Token
}

func newResidentTracker(engine ports.Engine) *residentTracker {
	return &residentTracker{engine: engine}
}

func (t *residentTracker) length() int {
	return len(t.tokens)
}

func (t *residentTracker) resident() []domain.Token {
	out := make([]domain.Token, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// align trims engine memory to the prompt's reusable prefix and returns the
// reconciliation plan whose suffix still needs ingesting.
func (t *residentTracker) align(prompt []domain.Token) domain.Reconciliation {
	plan := domain.ReconcilePrompt(t.tokens, prompt)
	if plan.Keep < len(t.tokens) {
		t.engine.InvalidateFrom(plan.Keep)
		t.tokens = t.tokens[:plan.Keep]
	}
	return plan
}

// ingest feeds suffix to the engine in batch-sized chunks at absolute
// positions. Only the globally last token requests output logits.
// Cancellation is honored between chunks and never rolls back ingested
// tokens; the returned count and the mirror cover exactly the chunks that
// completed.
func (t *residentTracker) ingest(ctx context.Context, suffix []domain.Token, onProgress func(float64)) (int, error) {
	total := len(suffix)
	if total == 0 {
		return 0, nil
	}

	batch := t.engine.MaxBatchSize()
	if batch < 1 {
		batch = 1
	}

	ingested := 0
	for ingested < total {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}

		n := min(batch, total-ingested)
		chunk := suffix[ingested : ingested+n]
		positions := make([]int, n)
		wantOutput := make([]bool, n)
		for i := range chunk {
			positions[i] = len(t.tokens) + i
		}
		if ingested+n == total {
			wantOutput[n-1] = true
		}

		if err := t.engine.DecodeBatch(chunk, positions, wantOutput); err != nil {
			return ingested, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
		}

		t.tokens = append(t.tokens, chunk...)
		ingested += n
		if onProgress != nil {
			onProgress(float64(ingested) / float64(total))
		}
	}

	return ingested, nil
}

// extend decodes one sampled token at the tail. Generated tokens are always
// appended, never reconciled.
func (t *residentTracker) extend(token domain.Token) error {
	position := len(t.tokens)
	if err := t.engine.DecodeBatch([]domain.Token{token}, []int{position}, []bool{true}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	t.tokens = append(t.tokens, token)
	return nil
}

func (t *residentTracker) discard() {
	t.engine.InvalidateFrom(0)
	t.tokens = t.tokens[:0]
}
