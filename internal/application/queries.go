package application

import "github.com/ctxforge/ctxcache/internal/domain"

type TurnState string

const (
	TurnDone      TurnState = "done"
	TurnCancelled TurnState = "cancelled"
)

type Stage string

const (
	StageBuildingPrompt Stage = "building-prompt"
	StageReconciling    Stage = "reconciling"
	StageIngesting      Stage = "ingesting"
	StageSampling       Stage = "sampling"
)

type Progress struct {
	Stage    Stage
	Fraction float64
	Label    string
}

type TurnOutcome struct {
	State         TurnState
	TurnID        domain.TurnID
	Text          string
	PromptTokens  int
	FreshTokens   int
	SampledTokens int
	Anchor        domain.TurnID
}

type WindowTurn struct {
	ID      domain.TurnID
	Role    domain.Role
	Cost    int
	Preview string
}

type WindowReport struct {
	Turns     []WindowTurn
	Anchor    domain.TurnID
	TotalCost int
	Budget    int
	Runway    int
	Capacity  int
	Resident  int
}

type EstimateResult struct {
	PromptTokens int
	WindowTurns  int
	Budget       int
	Capacity     int
	Approximate  bool
}
