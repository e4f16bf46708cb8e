package application

import (
	"log/slog"
	"sync"

	"github.com/ctxforge/ctxcache/internal/ports"
)

// Service drives generation turns against a single engine-resident token
// sequence. The mutex is held for a whole turn: render, chunked ingestion
// and every sampling step yield control to the caller, and none of those
// suspension points may interleave with another writer on the same resident
// sequence.
type Service struct {
	engine   ports.Engine
	renderer ports.PromptRenderer
	clock    ports.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	tracker *residentTracker
}

func NewService(engine ports.Engine, renderer ports.PromptRenderer, clock ports.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		engine:   engine,
		renderer: renderer,
		clock:    clock,
		logger:   logger,
	}
	if engine != nil {
		s.tracker = newResidentTracker(engine)
	}
	return s
}

// DiscardResident drops the engine's whole resident sequence. Used when the
// active conversation changes; two conversations share no useful prefix, so
// reconciling across them would only churn.
func (s *Service) DiscardResident() {
	if s.engine == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.discard()
	s.logger.Debug("resident sequence discarded")
}

func (s *Service) tokenCost(text string) int {
	if text == "" {
		return 0
	}
	tokens, err := s.engine.Tokenize(text, false)
	if err != nil {
		return approxTokenCount(text)
	}
	return len(tokens)
}

// approxTokenCount is the length/4 heuristic used only when no tokenizer is
// reachable. Good enough for a last-resort display estimate, never for
// budget math against a live engine.
func approxTokenCount(text string) int {
	return (len(text) + 3) / 4
}
