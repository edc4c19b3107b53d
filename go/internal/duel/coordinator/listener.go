package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string // Channel name to LISTEN on
	PingInterval  time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "duel_deadlines",
		PingInterval:  90 * time.Second,
	}
}

// Waker is woken whenever another instance stores a new report deadline.
type Waker interface {
	Wake()
}

// DeadlineListener relays Postgres deadline notifications to the local
// scheduler so a deadline armed on another instance is not missed until the
// next idle poll.
type DeadlineListener struct {
	listener *pq.Listener
	waker    Waker
	cfg      ListenerConfig
}

func NewDeadlineListener(waker Waker, cfg ListenerConfig) (*DeadlineListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for deadline notifications")

	return &DeadlineListener{
		listener: l,
		waker:    waker,
		cfg:      cfg,
	}, nil
}

func (l *DeadlineListener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("deadline listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			// nil means the connection was re-established and notifications
			// may have been missed, so wake either way.
			if note != nil {
				log.Debug().Str("match_id", note.Extra).Msg("deadline notification")
			}
			l.waker.Wake()
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *DeadlineListener) Stop() error {
	return l.listener.Close()
}
