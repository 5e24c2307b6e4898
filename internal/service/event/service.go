package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/mesh-api/pkg/clock"
	"github.com/jwalitptl/mesh-api/pkg/logger"
	"github.com/jwalitptl/mesh-api/pkg/messaging"
)

// Type identifies a routing event published to the mesh control plane.
type Type string

const (
	TypeBreakerTransition   Type = "breaker.transition"
	TypeRegionHealthChanged Type = "region.health_changed"
)

// Event is the payload published on the routing events channel.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Region    string                 `json:"region"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Service records routing events and pushes them through the message
// broker. Publishing is best-effort: a broker failure is logged, never
// propagated, since routing must not depend on the event bus.
type Service struct {
	broker  messaging.Broker // nil when eventing is disabled
	channel string
	clk     clock.Clock
	logger  *logger.Logger
}

func NewService(broker messaging.Broker, channel string, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{
		broker:  broker,
		channel: channel,
		clk:     clk,
		logger:  log,
	}
}

func (s *Service) Record(ctx context.Context, typ Type, region string, payload map[string]interface{}) {
	if s.broker == nil {
		return
	}

	evt := Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Region:    region,
		Payload:   payload,
		CreatedAt: s.clk.Now(),
	}
	if err := s.broker.Publish(ctx, s.channel, evt); err != nil && s.logger != nil {
		s.logger.Warn("failed to publish routing event",
			"type", string(typ), "region", region, "error", err.Error())
	}
}
