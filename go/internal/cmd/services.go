package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/wordduel/go/clients"
	"github.com/mcdev12/wordduel/go/clients/puzzle_client"
	"github.com/mcdev12/wordduel/go/internal/auth"
	"github.com/mcdev12/wordduel/go/internal/dbconfig"
	"github.com/mcdev12/wordduel/go/internal/duel/broadcast"
	"github.com/mcdev12/wordduel/go/internal/duel/coordinator"
	"github.com/mcdev12/wordduel/go/internal/duel/gateway"
	"github.com/mcdev12/wordduel/go/internal/duel/repository"
	"github.com/mcdev12/wordduel/go/internal/ledger"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Coordinator  *coordinator.Coordinator
	Connections  *gateway.ConnectionManager
	Dispatcher   *gateway.Dispatcher
	Ledger       *ledger.Ledger
	Verifier     *auth.Verifier
	HealthChecks map[string]gateway.HealthCheck

	listener *coordinator.DeadlineListener
	reaper   *coordinator.Reaper
	consumer *gateway.EventConsumer
	closers  []func()
}

func setupServices(ctx context.Context, cfg *Config) (_ *Services, err error) {
	services := &Services{
		Connections:  gateway.NewConnectionManager(gateway.DefaultConnectionConfig()),
		HealthChecks: make(map[string]gateway.HealthCheck),
	}
	defer func() {
		if err != nil {
			services.Close()
		}
	}()

	services.Verifier, err = auth.NewVerifier(auth.Config{
		Secret:     getEnv("JWT_SECRET", ""),
		CookieName: getEnv("JWT_COOKIE", ""),
	})
	if err != nil {
		return nil, err
	}

	dbConfig := dbconfig.NewConfigFromEnv()
	listenerConfig := coordinator.DefaultListenerConfig()
	listenerConfig.DatabaseURL = dbConfig.DSN()

	repo, err := services.setupRepository(ctx, cfg, dbConfig, listenerConfig)
	if err != nil {
		return nil, err
	}

	broadcaster, err := services.setupBroadcaster(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var scoreLedger coordinator.ScoreLedger
	if cfg.Ledger.Enabled {
		database, err := setupDatabase(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, func() { database.Close() })
		services.Ledger = ledger.NewLedger(database)
		if err := services.Ledger.Migrate(ctx); err != nil {
			return nil, err
		}
		scoreLedger = services.Ledger
		services.HealthChecks["ledger"] = services.Ledger.Ping
	}

	clock := clockwork.NewRealClock()
	services.Coordinator, err = coordinator.New(&coordinator.Config{
		Repository:  repo,
		Puzzles:     setupPuzzleProvider(cfg),
		Ledger:      scoreLedger,
		Broadcaster: broadcaster,
		Clock:       clock,
		PuzzleSize:  cfg.Match.PuzzleSize,
		ReportGrace: cfg.Match.ReportGrace,
		SeekTTL:     cfg.Match.SeekTTL,
		BatchSize:   cfg.Scheduler.BatchSize,
		Workers:     cfg.Scheduler.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	services.HealthChecks["store"] = services.Coordinator.Ping
	services.Dispatcher = gateway.NewDispatcher(services.Coordinator, clock)

	if cfg.Store == StorePostgres {
		services.listener, err = coordinator.NewDeadlineListener(services.Coordinator, listenerConfig)
		if err != nil {
			return nil, err
		}
	}

	services.reaper, err = coordinator.NewReaper(services.Coordinator, cfg.Match.ReapInterval)
	if err != nil {
		return nil, err
	}

	return services, nil
}

func (s *Services) setupRepository(ctx context.Context, cfg *Config, dbConfig dbconfig.Config, listenerConfig coordinator.ListenerConfig) (repository.Repository, error) {
	if cfg.Store == StoreRedis {
		client, err := setupRedis(ctx, dbconfig.NewRedisConfigFromEnv())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		repo, err := repository.NewRedis(&repository.RedisConfig{RedisClient: client, MaxRetries: 10})
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	pool, err := setupPool(ctx, dbConfig)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, pool.Close)

	repo, err := repository.NewPostgres(&repository.PostgresConfig{
		Pool:            pool,
		DeadlineChannel: listenerConfig.NotifyChannel,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *Services) setupBroadcaster(ctx context.Context, cfg *Config) (coordinator.Broadcaster, error) {
	if cfg.Broadcast == BroadcastLocal {
		return broadcast.NewLocal(s.Connections), nil
	}

	jsConfig := broadcast.DefaultJetStreamConfig()
	jsConfig.URL = getEnv("NATS_URL", nats.DefaultURL)

	nc, js, err := broadcast.Connect(jsConfig)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, nc.Close)
	s.HealthChecks["nats"] = func(context.Context) error {
		if !nc.IsConnected() {
			return fmt.Errorf("nats status %s", nc.Status())
		}
		return nil
	}

	publisher, err := broadcast.NewJetStreamPublisher(ctx, js, jsConfig)
	if err != nil {
		return nil, err
	}

	s.consumer, err = gateway.NewEventConsumer(ctx, js, s.Connections, gateway.DefaultJetStreamConsumerConfig())
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

func setupPuzzleProvider(cfg *Config) coordinator.PuzzleProvider {
	if clients.PuzzleSource(cfg.Puzzle.Mode) == clients.PuzzleSourceProcess {
		return puzzle_client.NewProcessClient(puzzle_client.ProcessConfig{
			Command: cfg.Puzzle.Command,
			Args:    cfg.Puzzle.Args,
			Dir:     cfg.Puzzle.Dir,
			Timeout: cfg.Puzzle.Timeout,
		})
	}
	return puzzle_client.NewHTTPClient(cfg.Puzzle.URL, cfg.Puzzle.Timeout)
}

// Start launches the background loops. They stop when ctx is done.
func (s *Services) Start(ctx context.Context) {
	run := func(name string, fn func(context.Context) error) {
		go func() {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", name).Msg("background loop failed")
			}
		}()
	}

	run("scheduler", s.Coordinator.RunScheduler)
	run("reaper", s.reaper.Start)
	if s.listener != nil {
		run("deadline_listener", s.listener.Start)
	}
	if s.consumer != nil {
		run("event_consumer", s.consumer.Start)
	}
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
