package domain

import "context"

// FeaturesProvider builds the per-cycle market snapshot. Implementations
// live outside the competition core (exchange feeds, replay files, synthetic
// generators); the core relies only on this contract.
type FeaturesProvider interface {
	// Build fetches one feature vector per tracked symbol.
	Build(ctx context.Context) ([]FeatureVector, error)
	// UpdateSymbols replaces the set of tracked symbols.
	UpdateSymbols(symbols []string)
}

// DecisionEngine is the pluggable per-agent strategy. Compose must be
// side-effect-free: the coordinator may discard its result on timeout and the
// cycle proceeds with a wait decision instead.
type DecisionEngine interface {
	Compose(ctx context.Context, cc ComposeContext) (ComposeResult, error)
}

// AgentSpec describes one competitor: its identity and which decision engine
// configuration it runs.
type AgentSpec struct {
	ID     string
	Engine string
	Params map[string]any
}
