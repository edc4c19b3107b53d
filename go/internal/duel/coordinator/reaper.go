package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// SeekerExpirer withdraws seekers that have waited too long.
type SeekerExpirer interface {
	ExpireSeekers(ctx context.Context) (int, error)
}

// Reaper periodically clears stale seekers, for example ones whose serving
// instance crashed before it could observe the connection close.
type Reaper struct {
	scheduler gocron.Scheduler
	expirer   SeekerExpirer
	interval  time.Duration
}

func NewReaper(expirer SeekerExpirer, interval time.Duration) (*Reaper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create reaper scheduler: %w", err)
	}
	return &Reaper{
		scheduler: sched,
		expirer:   expirer,
		interval:  interval,
	}, nil
}

// Start schedules the sweep and runs until ctx is done.
func (r *Reaper) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			r.sweep(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reaper job: %w", err)
	}

	r.scheduler.Start()
	log.Info().Dur("interval", r.interval).Msg("seeker reaper started")

	<-ctx.Done()
	return r.scheduler.Shutdown()
}

func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.expirer.ExpireSeekers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to expire stale seekers")
		return
	}
	if n > 0 {
		log.Info().Int("expired", n).Msg("expired stale seekers")
	}
}
