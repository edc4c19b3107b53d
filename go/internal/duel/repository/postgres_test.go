package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/stretchr/testify/suite"
)

// PostgresRepositoryTestSuite runs against a real database named by
// DUEL_TEST_DATABASE_URL and is skipped otherwise.
type PostgresRepositoryTestSuite struct {
	suite.Suite
	pool    *pgxpool.Pool
	repo    *Postgres
	ctx     context.Context
	testNow time.Time
}

func TestPostgresRepositoryTestSuite(t *testing.T) {
	if os.Getenv("DUEL_TEST_DATABASE_URL") == "" {
		t.Skip("DUEL_TEST_DATABASE_URL not set")
	}
	suite.Run(t, new(PostgresRepositoryTestSuite))
}

func (s *PostgresRepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	pool, err := pgxpool.New(s.ctx, os.Getenv("DUEL_TEST_DATABASE_URL"))
	s.Require().NoError(err)
	s.pool = pool

	repo, err := NewPostgres(&PostgresConfig{Pool: pool})
	s.Require().NoError(err)
	s.Require().NoError(repo.Migrate(s.ctx))
	s.repo = repo
}

func (s *PostgresRepositoryTestSuite) TearDownSuite() {
	s.pool.Close()
}

func (s *PostgresRepositoryTestSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE duel_matches, duel_participants`)
	s.Require().NoError(err)
	s.testNow = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *PostgresRepositoryTestSuite) seek(playerID, connectionID string) *SeekMatchOutput {
	out, err := s.repo.SeekMatch(s.ctx, &SeekMatchInput{
		PlayerID:     playerID,
		ConnectionID: connectionID,
		MatchID:      uuid.New(),
		Now:          s.testNow,
	})
	s.Require().NoError(err)
	return out
}

func (s *PostgresRepositoryTestSuite) TestSeekMatchPairsWithWaitingParticipant() {
	s.False(s.seek("alice", "conn-alice").Matched())
	out := s.seek("bob", "conn-bob")

	s.Require().True(out.Matched())
	s.Equal("alice", out.Match.PlayerA)
	s.Equal("bob", out.Match.PlayerB)
	s.Equal("conn-alice", out.Opponent.ConnectionID)

	_, err := s.repo.SeekMatch(s.ctx, &SeekMatchInput{
		PlayerID: "alice", ConnectionID: "conn-alice-2", MatchID: uuid.New(), Now: s.testNow,
	})
	s.ErrorIs(err, ErrAlreadyInMatch)
}

func (s *PostgresRepositoryTestSuite) TestConcurrentSeekersArePairedExactlyOnce() {
	const players = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matched int
	)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := s.repo.SeekMatch(s.ctx, &SeekMatchInput{
				PlayerID:     fmt.Sprintf("player-%d", i),
				ConnectionID: fmt.Sprintf("conn-%d", i),
				MatchID:      uuid.New(),
				Now:          s.testNow,
			})
			s.NoError(err)
			if out.Matched() {
				mu.Lock()
				matched++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	s.Equal(players/2, matched)

	var seeking int
	s.Require().NoError(s.pool.QueryRow(s.ctx,
		`SELECT COUNT(*) FROM duel_participants WHERE seeking`).Scan(&seeking))
	s.Zero(seeking)
}

func (s *PostgresRepositoryTestSuite) TestUpdateMatchRoundTrip() {
	s.seek("alice", "conn-alice")
	match := s.seek("bob", "conn-bob").Match
	deadline := s.testNow.Add(time.Minute)

	_, err := s.repo.UpdateMatch(s.ctx, match.ID, func(m *models.Match) error {
		score, taken := 30, 45
		m.ResultB = models.PlayerResult{Score: &score, TimeTaken: &taken}
		m.ReportDeadline = &deadline
		m.Puzzle = &models.Puzzle{Size: 1, Grid: [][]string{{"A"}}}
		return nil
	})
	s.Require().NoError(err)

	next, err := s.repo.NextDeadline(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(next)
	s.True(next.Equal(deadline))

	due, err := s.repo.DueMatches(s.ctx, deadline, 10)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{match.ID}, due)

	updated, err := s.repo.UpdateMatch(s.ctx, match.ID, func(m *models.Match) error {
		m.Finish(models.MatchStatusEnded, models.SlotB, models.EndReasonTimeout, deadline)
		return nil
	})
	s.Require().NoError(err)
	s.Equal("bob", *updated.WinnerID)

	stored, err := s.repo.GetMatch(s.ctx, match.ID)
	s.Require().NoError(err)
	s.Equal(models.MatchStatusEnded, stored.Status)
	s.Equal(models.EndReasonTimeout, *stored.Reason)
	s.Equal(30, *stored.ResultB.Score)
	s.Nil(stored.ResultA.Score)
	s.Nil(stored.ReportDeadline)
	s.Require().NotNil(stored.Puzzle)
	s.Equal("A", stored.Puzzle.Grid[0][0])
}

func (s *PostgresRepositoryTestSuite) TestReleaseConnection() {
	s.seek("alice", "conn-alice")

	out, err := s.repo.ReleaseConnection(s.ctx, "conn-alice")
	s.Require().NoError(err)
	s.True(out.WasSeeking)

	out, err = s.repo.ReleaseConnection(s.ctx, "conn-alice")
	s.Require().NoError(err)
	s.False(out.WasSeeking)

	_, err = s.repo.GetParticipant(s.ctx, "alice")
	s.ErrorIs(err, ErrParticipantNotFound)
}

func (s *PostgresRepositoryTestSuite) TestAttachConnectionAndAbort() {
	s.seek("alice", "conn-alice")
	match := s.seek("bob", "conn-bob").Match

	_, err := s.repo.AttachConnection(s.ctx, &AttachConnectionInput{
		MatchID: match.ID, PlayerID: "bob", ConnectionID: "conn-bob-2", Now: s.testNow,
	})
	s.Require().NoError(err)

	p, err := s.repo.GetParticipant(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal("conn-bob-2", p.ConnectionID)

	s.Require().NoError(s.repo.AbortMatch(s.ctx, match.ID))
	s.ErrorIs(s.repo.AbortMatch(s.ctx, match.ID), ErrMatchNotActive)
}

func (s *PostgresRepositoryTestSuite) TestExpireSeekers() {
	s.seek("alice", "conn-alice")

	expired, err := s.repo.ExpireSeekers(s.ctx, s.testNow.Add(time.Second), 10)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal("alice", expired[0].PlayerID)
}
