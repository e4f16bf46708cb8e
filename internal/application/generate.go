package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ctxforge/ctxcache/internal/domain"
)

type ProgressFunc func(Progress)

type DeltaFunc func(string)

// RunGenerationTurn executes one turn end to end: window selection, prompt
// rendering, cache reconciliation, batched ingestion, then token-by-token
// sampling streamed through onDelta. Cancellation via ctx is cooperative and
// is not an error: the partially generated turn is kept and the outcome
// reports TurnCancelled. A decode failure removes the placeholder turn; a
// render failure aborts before any turn or cache mutation happens.
func (s *Service) RunGenerationTurn(ctx context.Context, conv *domain.Conversation, req GenerationRequest, onProgress ProgressFunc, onDelta DeltaFunc) (TurnOutcome, error) {
	if s.engine == nil {
		return TurnOutcome{}, domain.ErrEngineUnavailable
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}
	req = req.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	onProgress(Progress{Stage: StageBuildingPrompt, Label: "building prompt"})

	sel, budget, _, err := s.selectWindow(conv, req)
	if err != nil {
		return TurnOutcome{}, fmt.Errorf("select window: %w", err)
	}
	if sel.Anchor != 0 {
		conv.SetAnchor(sel.Anchor)
	}

	prompt, err := s.renderer.Render(sel.Turns, req.SystemText, req.Template, req.Continuing)
	if err != nil {
		return TurnOutcome{}, fmt.Errorf("%w: %v", domain.ErrRenderFailure, err)
	}

	promptTokens, err := s.engine.Tokenize(prompt, true)
	if err != nil {
		return TurnOutcome{}, fmt.Errorf("tokenize prompt: %w", err)
	}

	s.logger.Debug("prompt built",
		"window_turns", len(sel.Turns),
		"prompt_tokens", len(promptTokens),
		"budget", budget)

	target, created := s.targetTurn(conv, req.Continuing)
	priorText := target.Text
	undoTarget := func() {
		if created {
			conv.Remove(target.ID)
		} else {
			conv.SetText(target.ID, priorText)
		}
	}

	onProgress(Progress{Stage: StageReconciling, Label: "reconciling cache"})
	plan := s.tracker.align(promptTokens)
	s.logger.Debug("cache reconciled",
		"kept", plan.Keep,
		"suffix", len(plan.Suffix),
		"fresh", plan.Fresh)

	ingested, err := s.tracker.ingest(ctx, plan.Suffix, func(fraction float64) {
		onProgress(Progress{Stage: StageIngesting, Fraction: fraction, Label: "ingesting prompt"})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return TurnOutcome{
				State:        TurnCancelled,
				TurnID:       target.ID,
				PromptTokens: len(promptTokens),
				FreshTokens:  plan.Fresh,
				Anchor:       sel.Anchor,
			}, nil
		}
		undoTarget()
		return TurnOutcome{}, fmt.Errorf("ingest prompt suffix: %w", err)
	}
	s.logger.Debug("prompt ingested", "tokens", ingested)

	onProgress(Progress{Stage: StageSampling, Label: "generating"})

	var (
		assembler domain.FragmentAssembler
		emitted   strings.Builder
		steps     int
		state     = TurnDone
	)
	capacity := s.engine.ContextCapacity()
	emit := func(text string) {
		if text == "" {
			return
		}
		emitted.WriteString(text)
		conv.AppendText(target.ID, text)
		onDelta(text)
	}

	for {
		if ctx.Err() != nil {
			state = TurnCancelled
			break
		}
		if req.MaxGenerationTokens > 0 && steps >= req.MaxGenerationTokens {
			break
		}
		if s.tracker.length() >= capacity {
			break
		}

		token, err := s.engine.SampleNext()
		if err != nil {
			undoTarget()
			return TurnOutcome{}, fmt.Errorf("sample next token: %w", err)
		}
		if s.engine.IsEndMarker(token) {
			break
		}
		if err := s.tracker.extend(token); err != nil {
			undoTarget()
			return TurnOutcome{}, fmt.Errorf("extend resident sequence: %w", err)
		}
		steps++
		emit(assembler.Push(s.engine.TokenText(token)))
	}
	emit(assembler.Flush())

	s.logger.Debug("generation turn finished", "state", string(state), "sampled", steps)

	return TurnOutcome{
		State:         state,
		TurnID:        target.ID,
		Text:          emitted.String(),
		PromptTokens:  len(promptTokens),
		FreshTokens:   plan.Fresh,
		SampledTokens: steps,
		Anchor:        sel.Anchor,
	}, nil
}

// targetTurn returns the turn generation streams into. Continuing an
// assistant turn reuses it; anything else appends a placeholder.
func (s *Service) targetTurn(conv *domain.Conversation, continuing bool) (domain.Turn, bool) {
	if continuing {
		if last, ok := conv.Last(); ok && last.Role == domain.RoleAssistant {
			return last, false
		}
	}
	return conv.Append(domain.RoleAssistant, "", s.clock.Now()), true
}
