package domain

import "fmt"

// CostEstimator reports the token cost of a piece of text. Estimates only
// steer window selection; the exact prompt cost is known after tokenization.
type CostEstimator func(text string) int

type WindowRequest struct {
	Budget          int
	RunwayReserve   int
	PerTurnOverhead int
}

type WindowSelection struct {
	Turns     []Turn // turns with non-empty response text, oldest first
	Costs     []int  // estimated cost per selected turn
	Start     int    // index of the first selected turn in the full log
	Anchor    TurnID // anchor after selection, 0 when the log is empty
	TotalCost int
}

// TokenBudget derives the prompt budget and the runway reserve from the
// engine capacity and the generation settings. The reservation keeps room
// for generated output. The runway is extra slack subtracted when the window
// slides so the next several turns fit without another slide.
func TokenBudget(contextCapacity, maxGenerationTokens, reservedBuffer int) (budget, runway int) {
	reservation := maxGenerationTokens
	if reservation <= 0 {
		reservation = reservedBuffer
	}

	budget = contextCapacity - reservation
	if budget < 0 {
		budget = 0
	}

	runway = reservedBuffer
	if runway <= 0 {
		runway = maxGenerationTokens
	}
	if runway < 0 {
		runway = 0
	}

	return budget, runway
}

// SelectWindow picks the contiguous suffix of turns that becomes the next
// prompt. Selection starts at the anchored turn when the anchor still
// resolves, otherwise at the beginning. When the estimated total exceeds the
// budget the start slides forward until the remainder fits under
// budget−runway (or a single turn remains), and the anchor moves with it;
// sliding invalidates resident cache from the new start, so the runway slack
// keeps it rare. Turns whose stripped response text is empty are excluded
// from the result but still counted while summing.
func SelectWindow(turns []Turn, anchor TurnID, req WindowRequest, cost CostEstimator) (WindowSelection, error) {
	if len(turns) == 0 {
		return WindowSelection{}, nil
	}

	budget := max(req.Budget, 0)
	runway := max(req.RunwayReserve, 0)
	overhead := max(req.PerTurnOverhead, 0)

	start := 0
	anchored := false
	if anchor != 0 {
		for i := range turns {
			if turns[i].ID == anchor {
				start = i
				anchored = true
				break
			}
		}
	}

	texts := make([]string, len(turns))
	costs := make([]int, len(turns))
	total := 0
	for i := start; i < len(turns); i++ {
		texts[i] = turns[i].ResponseText()
		costs[i] = cost(texts[i]) + overhead
		total += costs[i]
	}

	newAnchor := anchor
	switch {
	case total <= budget:
		if !anchored {
			start = 0
			newAnchor = turns[0].ID
		}
	default:
		limit := budget - runway
		if limit < 0 {
			limit = 0
		}
		for total > limit && len(turns)-start > 1 {
			total -= costs[start]
			start++
		}
		if total > budget {
			return WindowSelection{}, fmt.Errorf("%w: turn %d alone needs %d of %d budget tokens",
				ErrBudgetUnsatisfiable, turns[start].ID, total, budget)
		}
		newAnchor = turns[start].ID
	}

	sel := WindowSelection{Start: start, Anchor: newAnchor, TotalCost: total}
	for i := start; i < len(turns); i++ {
		if texts[i] == "" {
			continue
		}
		sel.Turns = append(sel.Turns, turns[i])
		sel.Costs = append(sel.Costs, costs[i])
	}
	return sel, nil
}
