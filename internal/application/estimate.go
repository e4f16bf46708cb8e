package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/ctxforge/ctxcache/internal/domain"
)

// EstimatePromptTokens reports how many tokens the next prompt would cost.
// With an engine present this runs the same window selection and rendering a
// generation turn would, then counts real tokens. Without one it falls back
// to the length/4 heuristic over everything from the current anchor and
// marks the result approximate; the anchor is never moved either way.
func (s *Service) EstimatePromptTokens(ctx context.Context, conv *domain.Conversation, req GenerationRequest) (EstimateResult, error) {
	req = req.normalized()

	if s.engine == nil {
		return s.approximateEstimate(conv, req), nil
	}

	sel, budget, _, err := s.selectWindow(conv, req)
	if err != nil {
		return EstimateResult{}, fmt.Errorf("select window: %w", err)
	}

	prompt, err := s.renderer.Render(sel.Turns, req.SystemText, req.Template, req.Continuing)
	if err != nil {
		return EstimateResult{}, fmt.Errorf("%w: %v", domain.ErrRenderFailure, err)
	}

	tokens, err := s.engine.Tokenize(prompt, true)
	if err != nil {
		return EstimateResult{}, fmt.Errorf("tokenize prompt: %w", err)
	}

	return EstimateResult{
		PromptTokens: len(tokens),
		WindowTurns:  len(sel.Turns),
		Budget:       budget,
		Capacity:     s.engine.ContextCapacity(),
	}, nil
}

func (s *Service) approximateEstimate(conv *domain.Conversation, req GenerationRequest) EstimateResult {
	turns := conv.Turns()
	start := 0
	if anchor := conv.Anchor(); anchor != 0 {
		if i := conv.IndexOf(anchor); i >= 0 {
			start = i
		}
	}

	total := 0
	count := 0
	for _, turn := range turns[start:] {
		text := turn.ResponseText()
		if text == "" {
			continue
		}
		total += approxTokenCount(text) + req.PerTurnOverhead
		count++
	}

	return EstimateResult{PromptTokens: total, WindowTurns: count, Approximate: true}
}

// PlanWindow runs window selection without committing anything: no anchor
// update, no cache mutation. It backs the inspection surface.
func (s *Service) PlanWindow(ctx context.Context, conv *domain.Conversation, req GenerationRequest) (WindowReport, error) {
	if s.engine == nil {
		return WindowReport{}, domain.ErrEngineUnavailable
	}
	req = req.normalized()

	sel, budget, runway, err := s.selectWindow(conv, req)
	if err != nil {
		return WindowReport{}, fmt.Errorf("select window: %w", err)
	}

	s.mu.Lock()
	resident := s.tracker.length()
	s.mu.Unlock()

	report := WindowReport{
		Anchor:    sel.Anchor,
		TotalCost: sel.TotalCost,
		Budget:    budget,
		Runway:    runway,
		Capacity:  s.engine.ContextCapacity(),
		Resident:  resident,
	}
	for i, turn := range sel.Turns {
		report.Turns = append(report.Turns, WindowTurn{
			ID:      turn.ID,
			Role:    turn.Role,
			Cost:    sel.Costs[i],
			Preview: preview(turn.ResponseText()),
		})
	}
	return report, nil
}

func (s *Service) selectWindow(conv *domain.Conversation, req GenerationRequest) (domain.WindowSelection, int, int, error) {
	budget, runway := domain.TokenBudget(s.engine.ContextCapacity(), req.MaxGenerationTokens, req.ReservedRunway)
	sel, err := domain.SelectWindow(conv.Turns(), conv.Anchor(), domain.WindowRequest{
		Budget:          budget,
		RunwayReserve:   runway,
		PerTurnOverhead: req.PerTurnOverhead,
	}, s.tokenCost)
	return sel, budget, runway, err
}

func preview(text string) string {
	const limit = 48
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
