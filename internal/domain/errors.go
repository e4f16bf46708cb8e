package domain

import "errors"

var (
	ErrEngineUnavailable   = errors.New("no inference engine available")
	ErrRenderFailure       = errors.New("prompt rendering failed")
	ErrDecodeFailure       = errors.New("batch decode failed")
	ErrBudgetUnsatisfiable = errors.New("token budget cannot fit a single turn")
	ErrTranscriptNotFound  = errors.New("transcript not found")
)
