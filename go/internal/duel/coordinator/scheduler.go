package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const idlePollDuration = 5 * time.Second

// Wake makes RunScheduler re-read the earliest deadline. Safe to call from
// any goroutine; extra wakes are coalesced.
func (c *Coordinator) Wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// RunScheduler loops until ctx is done, sleeping until the next report
// deadline and resolving due matches on a worker pool. Deadlines live in the
// repository, so a restarted or second instance picks up where another left off.
func (c *Coordinator) RunScheduler(ctx context.Context) error {
	log.Info().Str("instance", c.instanceID).Int("workers", c.numWorkers).Msg("scheduler started")

	// Start worker pool
	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < c.numWorkers; i++ {
		wg.Add(1)
		go c.worker(workerCtx, &wg, i)
	}

	// Ensure workers are cleaned up
	defer func() {
		log.Info().Str("instance", c.instanceID).Msg("shutting down workers")
		cancelWorkers()
		close(c.workCh)
		wg.Wait()
		log.Info().Str("instance", c.instanceID).Msg("all workers shut down")
	}()

	timer := c.clock.NewTimer(idlePollDuration)
	defer timer.Stop()

	retryCount := 0
	const maxRetries = 3

	for {
		select {
		case <-c.wakeCh:
			log.Debug().Str("instance", c.instanceID).Msg("drained wake channel")
		default:
		}

		next, err := c.repo.NextDeadline(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Handle transient errors with retry
			retryCount++
			if retryCount <= maxRetries {
				log.Error().
					Err(err).
					Int("retry", retryCount).
					Str("instance", c.instanceID).
					Msg("error fetching next deadline, retrying")
				resetTimer(timer, time.Second*time.Duration(retryCount))
				select {
				case <-timer.Chan():
					continue
				case <-ctx.Done():
					return nil
				}
			}
			log.Error().Err(err).Str("instance", c.instanceID).Msg("error fetching next deadline after retries")
			return err
		}
		retryCount = 0

		if next == nil {
			log.Debug().Str("instance", c.instanceID).Msg("no pending deadlines; polling again in 5s")
			resetTimer(timer, idlePollDuration)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				log.Info().Str("instance", c.instanceID).Msg("shutdown during idle")
				return nil
			case <-c.wakeCh:
				log.Debug().Str("instance", c.instanceID).Msg("woken up from idle")
				continue
			}
		}

		wait := next.Sub(c.clock.Now())
		if wait > 0 {
			resetTimer(timer, wait)
			select {
			case <-timer.Chan():
				log.Debug().Str("instance", c.instanceID).Msg("timer fired, fetching due matches")
			case <-ctx.Done():
				log.Info().Str("instance", c.instanceID).Msg("shutdown during wait")
				return nil
			case <-c.wakeCh:
				log.Debug().Str("instance", c.instanceID).Msg("woken up early, new deadline")
				continue
			}
		}

		due, err := c.repo.DueMatches(ctx, c.clock.Now(), c.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("instance", c.instanceID).Msg("error fetching due matches")
			resetTimer(timer, time.Second)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if len(due) == 0 {
			// Another instance claimed them, or the deadline moved. Yield
			// briefly so an in-flight resolution can commit.
			resetTimer(timer, 100*time.Millisecond)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				return nil
			case <-c.wakeCh:
			}
			continue
		}

		log.Info().
			Int("count_due", len(due)).
			Int("batch_size", c.batchSize).
			Str("instance", c.instanceID).
			Msg("processing due matches")

		queued := 0
		for _, matchID := range due {
			c.inFlightMu.Lock()
			if c.inFlight[matchID] {
				log.Debug().Str("match_id", matchID.String()).Str("instance", c.instanceID).Msg("skipping match already in flight")
				c.inFlightMu.Unlock()
				continue
			}
			c.inFlight[matchID] = true
			c.inFlightMu.Unlock()

			select {
			case <-ctx.Done():
				c.inFlightMu.Lock()
				delete(c.inFlight, matchID)
				c.inFlightMu.Unlock()
				log.Info().Str("instance", c.instanceID).Msg("shutdown while queueing timeouts")
				return nil
			case c.workCh <- matchID:
				queued++
			}
		}

		if queued == 0 {
			// Everything due is still being resolved by a worker.
			resetTimer(timer, 100*time.Millisecond)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// worker resolves match timeouts from the work channel
func (c *Coordinator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case matchID, ok := <-c.workCh:
			if !ok {
				return
			}

			log.Debug().
				Str("match_id", matchID.String()).
				Str("instance", c.instanceID).
				Int("worker_id", workerID).
				Msg("worker handling timeout")

			if err := c.ResolveTimeout(ctx, matchID); err != nil {
				log.Error().
					Err(err).
					Str("match_id", matchID.String()).
					Str("instance", c.instanceID).
					Int("worker_id", workerID).
					Msg("worker timeout handling failed")
			}

			// Clean up in-flight tracking regardless of success/failure
			c.inFlightMu.Lock()
			delete(c.inFlight, matchID)
			c.inFlightMu.Unlock()
		}
	}
}

// resetTimer stops t, drains a pending fire and re-arms it for d.
func resetTimer(t clockwork.Timer, d time.Duration) {
	stopAndDrainTimer(t)
	t.Reset(d)
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
