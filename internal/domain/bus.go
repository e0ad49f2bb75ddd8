package domain

import "context"

// StreamMessage is a single entry read back from a bus stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus is the ephemeral messaging fabric used to publish cycle results
// and leaderboard updates to external consumers (dashboards, the WebSocket
// hub). Implementations are in-process or Redis-backed; nothing published
// through the bus outlives the run.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channel and stream names used by the competition runtime.
const (
	ChannelCycles      = "cycles"
	ChannelLeaderboard = "leaderboard"
	ChannelStatus      = "status"
	StreamCycles       = "stream:cycles"
)
