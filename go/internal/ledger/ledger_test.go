package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mcdev12/wordduel/go/internal/ledger/db"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func intPtr(i int) *int { return &i }

func finishedMatch(scoreA, timeA, scoreB, timeB int, winner models.Slot) *models.Match {
	m := &models.Match{
		ID:        uuid.New(),
		PlayerA:   "alice",
		PlayerB:   "bob",
		ResultA:   models.PlayerResult{Score: intPtr(scoreA), TimeTaken: intPtr(timeA)},
		ResultB:   models.PlayerResult{Score: intPtr(scoreB), TimeTaken: intPtr(timeB)},
		Status:    models.MatchStatusActive,
		CreatedAt: time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC),
	}
	m.Finish(models.MatchStatusEnded, winner, models.EndReasonFinished, m.CreatedAt.Add(2*time.Minute))
	return m
}

func TestResultParams(t *testing.T) {
	m := finishedMatch(40, 45, 30, 50, models.SlotA)

	params, err := resultParams(m)
	require.NoError(t, err)
	assert.Equal(t, m.ID, params.MatchID)
	assert.Equal(t, "alice", params.WinnerID)
	assert.Equal(t, "ended", params.Status)
	assert.Equal(t, "finished", params.Reason)
	assert.Equal(t, sql.NullInt32{Int32: 40, Valid: true}, params.ScoreA)
	assert.Equal(t, sql.NullInt32{Int32: 50, Valid: true}, params.TimeB)
	require.True(t, params.Details.Valid)

	var details resultDetails
	require.NoError(t, json.Unmarshal(params.Details.RawMessage, &details))
	require.Len(t, details.Players, 2)
	assert.True(t, details.Players[0].Winner)
	assert.False(t, details.Players[1].Winner)
	assert.False(t, details.Forfeited)
}

func TestResultParamsForfeitWithoutScores(t *testing.T) {
	m := &models.Match{ID: uuid.New(), PlayerA: "alice", PlayerB: "bob", Status: models.MatchStatusActive}
	m.Finish(models.MatchStatusForfeited, models.SlotB, models.EndReasonDisconnect, time.Now())

	params, err := resultParams(m)
	require.NoError(t, err)
	assert.False(t, params.ScoreA.Valid)
	assert.False(t, params.TimeB.Valid)
	assert.Equal(t, "bob", params.WinnerID)

	assert.Equal(t, []db.UpsertPlayerStatsParams{
		{PlayerID: "alice", Losses: 1},
		{PlayerID: "bob", Wins: 1},
	}, statDeltas(m))
}

func TestResultParamsRejectsActiveMatch(t *testing.T) {
	_, err := resultParams(&models.Match{ID: uuid.New(), Status: models.MatchStatusActive})
	assert.ErrorIs(t, err, ErrMatchNotFinished)
}

func TestStatDeltas(t *testing.T) {
	m := finishedMatch(10, 45, 10, 50, models.SlotA)

	assert.Equal(t, []db.UpsertPlayerStatsParams{
		{PlayerID: "alice", Wins: 1, TotalScore: 10},
		{PlayerID: "bob", Losses: 1, TotalScore: 10},
	}, statDeltas(m))
}

// LedgerTestSuite runs against a real database named by
// DUEL_TEST_DATABASE_URL and is skipped otherwise.
type LedgerTestSuite struct {
	suite.Suite
	database *sql.DB
	ledger   *Ledger
	ctx      context.Context
}

func TestLedgerTestSuite(t *testing.T) {
	if os.Getenv("DUEL_TEST_DATABASE_URL") == "" {
		t.Skip("DUEL_TEST_DATABASE_URL not set")
	}
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) SetupSuite() {
	s.ctx = context.Background()
	database, err := sql.Open("postgres", os.Getenv("DUEL_TEST_DATABASE_URL"))
	s.Require().NoError(err)
	s.database = database
	s.ledger = NewLedger(database)
	s.Require().NoError(s.ledger.Migrate(s.ctx))
}

func (s *LedgerTestSuite) TearDownSuite() {
	s.database.Close()
}

func (s *LedgerTestSuite) SetupTest() {
	_, err := s.database.ExecContext(s.ctx, `TRUNCATE match_results, player_stats`)
	s.Require().NoError(err)
}

func (s *LedgerTestSuite) TestRecordMatchIsIdempotent() {
	m := finishedMatch(40, 45, 30, 50, models.SlotA)

	s.Require().NoError(s.ledger.RecordMatch(s.ctx, m))
	s.Require().NoError(s.ledger.RecordMatch(s.ctx, m))

	alice, err := s.ledger.GetStats(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(&models.PlayerStats{PlayerID: "alice", GamesPlayed: 1, Wins: 1, TotalScore: 40, Highscore: 40}, alice)

	bob, err := s.ledger.GetStats(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(&models.PlayerStats{PlayerID: "bob", GamesPlayed: 1, Losses: 1, TotalScore: 30, Highscore: 30}, bob)

	row, err := db.New(s.database).GetMatchResult(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal("alice", row.WinnerID)
	s.True(row.Details.Valid)
}

func (s *LedgerTestSuite) TestStatsAccumulate() {
	s.Require().NoError(s.ledger.RecordMatch(s.ctx, finishedMatch(40, 45, 30, 50, models.SlotA)))
	s.Require().NoError(s.ledger.RecordMatch(s.ctx, finishedMatch(20, 45, 60, 50, models.SlotB)))

	alice, err := s.ledger.GetStats(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(&models.PlayerStats{PlayerID: "alice", GamesPlayed: 2, Wins: 1, Losses: 1, TotalScore: 60, Highscore: 40}, alice)
}

func (s *LedgerTestSuite) TestUnknownPlayerHasZeroStats() {
	stats, err := s.ledger.GetStats(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Equal(&models.PlayerStats{PlayerID: "nobody"}, stats)
}
