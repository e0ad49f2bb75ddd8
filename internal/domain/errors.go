package domain

import "errors"

var (
	ErrNoPrice            = errors.New("no price available")
	ErrFeatureFetch       = errors.New("feature fetch failed")
	ErrDecisionTimeout    = errors.New("decision engine timed out")
	ErrUnknownAgent       = errors.New("unknown agent")
	ErrInvalidInstruction = errors.New("invalid instruction parameters")
	ErrEngineNotFound     = errors.New("decision engine not registered")
	ErrRuntimeStopped     = errors.New("competition runtime stopped")
	ErrNotFound           = errors.New("not found")
)
