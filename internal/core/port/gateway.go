package port

import (
	"context"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// SignalGateway is the outbound half of the signaling transport. Inbound
// envelopes arrive through a single long-lived read loop owned by the
// transport adapter, which delegates every message to the orchestrator.
type SignalGateway interface {
	Send(ctx context.Context, env domain.Envelope) error
}
