package sim

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ctxforge/ctxcache/internal/domain"
	"github.com/ctxforge/ctxcache/internal/ports"
)

const (
	tokenBOS  = domain.Token(1)
	tokenEOS  = domain.Token(2)
	tokenBase = domain.Token(16)

	// Pieces longer than this are split, so multi-byte runes can land on
	// chunk edges the way real subword tokenizers split them.
	maxPieceBytes = 16
)

type Config struct {
	ContextCapacity int
	MaxBatchSize    int
}

// Engine is a deterministic in-process inference engine. The tokenizer is
// reversible (concatenating pieces reproduces the text) and generation
// echoes a canned transformation of the prompt tail, which is enough to
// exercise reconciliation, batching and streaming end to end without model
// weights. All methods are safe for serialized callers; internal state is
// additionally mutex-guarded so read-only queries may race a turn.
type Engine struct {
	capacity  int
	batchSize int

	mu     sync.Mutex
	closed bool

	pieces map[string]domain.Token
	texts  []string

	resident    []domain.Token
	logitsReady bool

	reply       []domain.Token
	replyPos    int
	lastSampled domain.Token
	expectEcho  bool
}

var _ ports.Engine = (*Engine)(nil)

func New(cfg Config) *Engine {
	if cfg.ContextCapacity <= 0 {
		cfg.ContextCapacity = 4096
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 256
	}
	return &Engine{
		capacity:  cfg.ContextCapacity,
		batchSize: cfg.MaxBatchSize,
		pieces:    make(map[string]domain.Token),
	}
}

func (e *Engine) Tokenize(text string, addLeadingMarker bool) ([]domain.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, domain.ErrEngineUnavailable
	}

	tokens := make([]domain.Token, 0, len(text)/4+1)
	if addLeadingMarker {
		tokens = append(tokens, tokenBOS)
	}
	for _, piece := range splitPieces(text) {
		tokens = append(tokens, e.intern(piece))
	}
	return tokens, nil
}

func (e *Engine) DecodeBatch(tokens []domain.Token, positions []int, wantOutput []bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrEngineUnavailable
	}
	if len(tokens) == 0 {
		return fmt.Errorf("empty batch")
	}
	if len(positions) != len(tokens) || len(wantOutput) != len(tokens) {
		return fmt.Errorf("batch arity mismatch: %d tokens, %d positions, %d output flags",
			len(tokens), len(positions), len(wantOutput))
	}
	if len(tokens) > e.batchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(tokens), e.batchSize)
	}
	if len(e.resident)+len(tokens) > e.capacity {
		return fmt.Errorf("context capacity %d exceeded", e.capacity)
	}
	for i, position := range positions {
		if position != len(e.resident)+i {
			return fmt.Errorf("non-contiguous position %d, tail is at %d", position, len(e.resident)+i)
		}
	}

	echo := e.expectEcho && len(tokens) == 1 && tokens[0] == e.lastSampled
	if !echo {
		// Anything but the feedback of the last sampled token means the
		// prompt changed; the pending reply no longer applies.
		e.reply = nil
		e.replyPos = 0
	}
	e.expectEcho = false

	e.resident = append(e.resident, tokens...)
	e.logitsReady = wantOutput[len(wantOutput)-1]
	return nil
}

func (e *Engine) InvalidateFrom(position int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if position < 0 {
		position = 0
	}
	if position < len(e.resident) {
		e.resident = e.resident[:position]
	}
	e.logitsReady = false
	e.reply = nil
	e.replyPos = 0
	e.expectEcho = false
}

func (e *Engine) SampleNext() (domain.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, domain.ErrEngineUnavailable
	}
	if !e.logitsReady {
		return 0, fmt.Errorf("no output state at the sequence tail")
	}

	if e.reply == nil {
		e.reply = e.buildReply()
		e.replyPos = 0
	}
	if e.replyPos >= len(e.reply) {
		return tokenEOS, nil
	}

	token := e.reply[e.replyPos]
	e.replyPos++
	e.lastSampled = token
	e.expectEcho = true
	return token, nil
}

func (e *Engine) TokenText(token domain.Token) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := int(token - tokenBase); i >= 0 && i < len(e.texts) {
		return []byte(e.texts[i])
	}
	return nil
}

func (e *Engine) IsEndMarker(token domain.Token) bool {
	return token == tokenEOS
}

func (e *Engine) MaxBatchSize() int {
	return e.batchSize
}

func (e *Engine) ContextCapacity() int {
	return e.capacity
}

// Close releases the engine. Further calls fail with ErrEngineUnavailable.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.resident = nil
	e.reply = nil
	return nil
}

func (e *Engine) intern(piece string) domain.Token {
	if token, ok := e.pieces[piece]; ok {
		return token
	}
	token := tokenBase + domain.Token(len(e.texts))
	e.pieces[piece] = token
	e.texts = append(e.texts, piece)
	return token
}

// buildReply derives a deterministic response from the prompt tail. Called
// with the mutex held.
func (e *Engine) buildReply() []domain.Token {
	var b strings.Builder
	for _, token := range e.resident {
		if i := int(token - tokenBase); i >= 0 && i < len(e.texts) {
			b.WriteString(e.texts[i])
		}
	}

	fields := strings.Fields(b.String())
	if len(fields) > 10 {
		fields = fields[len(fields)-10:]
	}

	var reply string
	if len(fields) == 0 {
		reply = "Hello! What shall we talk about?"
	} else {
		reply = fmt.Sprintf("You said: %s. Go on.", strings.Join(fields, " "))
	}

	tokens := make([]domain.Token, 0, len(reply)/4+1)
	for _, piece := range splitPieces(reply) {
		tokens = append(tokens, e.intern(piece))
	}
	return tokens
}

// splitPieces cuts text into word pieces with their leading whitespace
// attached. Concatenating the pieces reproduces the input byte for byte.
func splitPieces(text string) []string {
	if text == "" {
		return nil
	}

	var pieces []string
	start := 0
	for i := 1; i < len(text); i++ {
		if i-start >= maxPieceBytes || (isSpaceByte(text[i]) && !isSpaceByte(text[i-1])) {
			pieces = append(pieces, text[start:i])
			start = i
		}
	}
	return append(pieces, text[start:])
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
