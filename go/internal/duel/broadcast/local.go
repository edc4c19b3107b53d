package broadcast

import (
	"context"

	"github.com/mcdev12/wordduel/go/internal/duel/events"
	"github.com/rs/zerolog/log"
)

// Deliverer hands an event to a connection hosted by this process. It
// reports false when the connection is not hosted here.
type Deliverer interface {
	Deliver(connectionID string, event *events.Event) bool
}

// Local delivers events straight to in-process connections. It is enough for
// a single instance deployment.
type Local struct {
	deliverer Deliverer
}

func NewLocal(deliverer Deliverer) *Local {
	return &Local{deliverer: deliverer}
}

func (l *Local) Send(_ context.Context, connectionID string, event *events.Event) error {
	if !l.deliverer.Deliver(connectionID, event) {
		log.Debug().
			Str("connection_id", connectionID).
			Str("event_type", string(event.Type)).
			Msg("connection not hosted here, event dropped")
	}
	return nil
}
