package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ctxforge/ctxcache/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerAlignIngestMatchesPromptExactly(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(4, 100)
	tr := newResidentTracker(engine)

	prompt, err := engine.Tokenize("hello world", true)
	require.NoError(t, err)
	require.Len(t, prompt, 12)

	plan := tr.align(prompt)
	assert.Zero(t, plan.Keep)
	assert.Equal(t, len(prompt), plan.Fresh)

	n, err := tr.ingest(context.Background(), plan.Suffix, nil)
	require.NoError(t, err)
	assert.Equal(t, len(prompt), n)

	assert.Equal(t, prompt, tr.resident())
	assert.Equal(t, prompt, engine.decoded)
	assert.Equal(t, []int{4, 4, 4}, engine.batchSizes)
	assert.Empty(t, engine.invalidations)
}

func TestTrackerOnlyLastSuffixTokenWantsOutput(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(5, 100)
	tr := newResidentTracker(engine)

	suffix := []domain.Token{10, 11, 12, 13, 14, 15, 16}
	n, err := tr.ingest(context.Background(), suffix, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.Len(t, engine.batchOutputs, 2)
	assert.Equal(t, []bool{false, false, false, false, false}, engine.batchOutputs[0])
	assert.Equal(t, []bool{false, true}, engine.batchOutputs[1])
	assert.Equal(t, []int{0, 1, 2, 3, 4}, engine.batchPositions[0])
	assert.Equal(t, []int{5, 6}, engine.batchPositions[1])
}

func TestTrackerReusePrefixOnSecondPrompt(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(8, 100)
	tr := newResidentTracker(engine)
	seedResident(t, tr, []domain.Token{1, 2, 3})

	plan := tr.align([]domain.Token{1, 2, 9})
	assert.Equal(t, 2, plan.Keep)
	assert.Equal(t, []domain.Token{9}, plan.Suffix)
	assert.Equal(t, 1, plan.Fresh)
	assert.Equal(t, []int{2}, engine.invalidations)

	n, err := tr.ingest(context.Background(), plan.Suffix, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []domain.Token{1, 2, 9}, tr.resident())
	assert.Equal(t, []domain.Token{1, 2, 9}, engine.decoded)
	assert.Equal(t, []int{2}, engine.batchPositions[len(engine.batchPositions)-1])
}

func TestTrackerFullMatchReingestsLastTokenOnly(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(8, 100)
	tr := newResidentTracker(engine)
	seedResident(t, tr, []domain.Token{1, 2, 3, 4})

	plan := tr.align([]domain.Token{1, 2, 3, 4})
	assert.Equal(t, 3, plan.Keep)
	assert.Equal(t, []domain.Token{4}, plan.Suffix)
	assert.Zero(t, plan.Fresh)
	assert.Equal(t, []int{3}, engine.invalidations)

	n, err := tr.ingest(context.Background(), plan.Suffix, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []domain.Token{1, 2, 3, 4}, tr.resident())
	assert.Equal(t, []domain.Token{1, 2, 3, 4}, engine.decoded)
}

func TestTrackerEmptyPromptInvalidatesAll(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(8, 100)
	tr := newResidentTracker(engine)
	seedResident(t, tr, []domain.Token{5, 6, 7})

	plan := tr.align(nil)
	assert.Zero(t, plan.Keep)
	assert.Empty(t, plan.Suffix)
	assert.Equal(t, []int{0}, engine.invalidations)

	n, err := tr.ingest(context.Background(), plan.Suffix, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, tr.length())
	assert.Empty(t, engine.decoded)
}

func TestTrackerCancellationKeepsCompletedChunksOnly(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(2, 100)
	tr := newResidentTracker(engine)

	ctx, cancel := context.WithCancel(context.Background())
	chunks := 0
	n, err := tr.ingest(ctx, []domain.Token{1, 2, 3, 4, 5, 6}, func(float64) {
		chunks++
		if chunks == 2 {
			cancel()
		}
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, tr.length())
	assert.Equal(t, []domain.Token{1, 2, 3, 4}, engine.decoded)
}

func TestTrackerDecodeFailureKeepsTruthfulLength(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(2, 100)
	engine.failDecodeAfter = 2
	tr := newResidentTracker(engine)

	n, err := tr.ingest(context.Background(), []domain.Token{1, 2, 3, 4}, nil)
	require.ErrorIs(t, err, domain.ErrDecodeFailure)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, tr.length())
	assert.Equal(t, []domain.Token{1, 2}, engine.decoded)
}

func TestTrackerIngestReportsFractions(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(2, 100)
	tr := newResidentTracker(engine)

	var fractions []float64
	_, err := tr.ingest(context.Background(), []domain.Token{1, 2, 3, 4, 5}, func(f float64) {
		fractions = append(fractions, f)
	})
	require.NoError(t, err)

	require.Len(t, fractions, 3)
	assert.InDelta(t, 0.4, fractions[0], 1e-9)
	assert.InDelta(t, 0.8, fractions[1], 1e-9)
	assert.InDelta(t, 1.0, fractions[2], 1e-9)
}

func TestTrackerExtendAndDiscard(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(8, 100)
	tr := newResidentTracker(engine)
	seedResident(t, tr, []domain.Token{1, 2})

	require.NoError(t, tr.extend(9))
	assert.Equal(t, []domain.Token{1, 2, 9}, engine.decoded)
	assert.Equal(t, []int{2}, engine.batchPositions[len(engine.batchPositions)-1])
	assert.Equal(t, []bool{true}, engine.batchOutputs[len(engine.batchOutputs)-1])

	tr.discard()
	assert.Zero(t, tr.length())
	assert.Empty(t, engine.decoded)
	assert.Equal(t, []int{0}, engine.invalidations)
}

func seedResident(t *testing.T, tr *residentTracker, tokens []domain.Token) {
	t.Helper()
	plan := tr.align(tokens)
	_, err := tr.ingest(context.Background(), plan.Suffix, nil)
	require.NoError(t, err)
	require.Equal(t, tokens, tr.resident())
}

const endMarker = domain.Token(-1)

type fakeEngine struct {
	batchSize int
	capacity  int

	script          []domain.Token
	sampleErr       error
	failDecodeAfter int

	decoded        []domain.Token
	decodeCalls    int
	batchSizes     []int
	batchPositions [][]int
	batchOutputs   [][]bool
	invalidations  []int
}

func newFakeEngine(batchSize, capacity int) *fakeEngine {
	return &fakeEngine{batchSize: batchSize, capacity: capacity}
}

// Tokenize maps every byte to its own token, which keeps prefixes of the
// text prefixes of the token sequence.
func (e *fakeEngine) Tokenize(text string, addLeadingMarker bool) ([]domain.Token, error) {
	tokens := make([]domain.Token, 0, len(text)+1)
	if addLeadingMarker {
		tokens = append(tokens, 1)
	}
	for _, b := range []byte(text) {
		tokens = append(tokens, domain.Token(b))
	}
	return tokens, nil
}

func (e *fakeEngine) DecodeBatch(tokens []domain.Token, positions []int, wantOutput []bool) error {
	e.decodeCalls++
	if e.failDecodeAfter > 0 && e.decodeCalls >= e.failDecodeAfter {
		return errors.New("decode rejected")
	}
	if len(tokens) > e.batchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(tokens), e.batchSize)
	}
	if len(e.decoded)+len(tokens) > e.capacity {
		return fmt.Errorf("context capacity %d exceeded", e.capacity)
	}
	for i, p := range positions {
		if p != len(e.decoded)+i {
			return fmt.Errorf("non-contiguous position %d", p)
		}
	}

	e.batchSizes = append(e.batchSizes, len(tokens))
	e.batchPositions = append(e.batchPositions, append([]int(nil), positions...))
	e.batchOutputs = append(e.batchOutputs, append([]bool(nil), wantOutput...))
	e.decoded = append(e.decoded, tokens...)
	return nil
}

func (e *fakeEngine) InvalidateFrom(position int) {
	if position < 0 {
		position = 0
	}
	if position < len(e.decoded) {
		e.decoded = e.decoded[:position]
	}
	e.invalidations = append(e.invalidations, position)
}

func (e *fakeEngine) SampleNext() (domain.Token, error) {
	if e.sampleErr != nil {
		return 0, e.sampleErr
	}
	if len(e.script) == 0 {
		return endMarker, nil
	}
	token := e.script[0]
	e.script = e.script[1:]
	return token, nil
}

func (e *fakeEngine) TokenText(token domain.Token) []byte {
	if token == endMarker || token == 1 {
		return nil
	}
	return []byte{byte(token)}
}

func (e *fakeEngine) IsEndMarker(token domain.Token) bool {
	return token == endMarker
}

func (e *fakeEngine) MaxBatchSize() int {
	return e.batchSize
}

func (e *fakeEngine) ContextCapacity() int {
	return e.capacity
}

func scriptTokens(s string) []domain.Token {
	tokens := make([]domain.Token, 0, len(s))
	for _, b := range []byte(s) {
		tokens = append(tokens, domain.Token(b))
	}
	return tokens
}
