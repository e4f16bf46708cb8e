package application

// GenerationRequest carries the per-turn settings the caller resolved from
// configuration. A zero MaxGenerationTokens means unbounded generation, in
// which case ReservedRunway keeps prompt budgeting from eating the whole
// context.
type GenerationRequest struct {
	SystemText          string
	Template            string
	MaxGenerationTokens int
	ReservedRunway      int
	PerTurnOverhead     int
	Continuing          bool
}

func (r GenerationRequest) normalized() GenerationRequest {
	if r.MaxGenerationTokens < 0 {
		r.MaxGenerationTokens = 0
	}
	if r.ReservedRunway < 0 {
		r.ReservedRunway = 0
	}
	if r.PerTurnOverhead < 0 {
		r.PerTurnOverhead = 0
	}
	return r
}
