package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/wordduel/go/internal/ledger/db"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

//go:embed schema.sql
var schemaSQL string

var ErrMatchNotFinished = errors.New("match is not finished")

// Ledger keeps finished match records and per-player aggregates.
type Ledger struct {
	db      *sql.DB
	queries db.Querier
}

func NewLedger(database *sql.DB) *Ledger {
	return &Ledger{
		db:      database,
		queries: db.New(database),
	}
}

// Migrate creates the ledger tables if they do not exist.
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

// RecordMatch appends the result of a terminal match and updates both
// players' stats. Recording the same match again changes nothing.
func (l *Ledger) RecordMatch(ctx context.Context, match *models.Match) error {
	params, err := resultParams(match)
	if err != nil {
		return err
	}

	var recorded bool
	err = sqlutil.Run(ctx, l.db, func(tx *sql.Tx) *db.Queries { return db.New(tx) }, func(q *db.Queries) error {
		rows, err := q.InsertMatchResult(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to insert match result: %w", err)
		}
		if rows == 0 {
			return nil
		}
		for _, delta := range statDeltas(match) {
			if err := q.UpsertPlayerStats(ctx, delta); err != nil {
				return fmt.Errorf("failed to update stats for %s: %w", delta.PlayerID, err)
			}
		}
		recorded = true
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("match_id", match.ID.String()).
		Bool("duplicate", !recorded).
		Msg("match recorded in ledger")
	return nil
}

// GetStats returns a player's aggregates. Players without finished matches
// get zeroed stats.
func (l *Ledger) GetStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	row, err := l.queries.GetPlayerStats(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.PlayerStats{PlayerID: playerID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}
	return &models.PlayerStats{
		PlayerID:    row.PlayerID,
		GamesPlayed: int(row.GamesPlayed),
		Wins:        int(row.Wins),
		Losses:      int(row.Losses),
		TotalScore:  int(row.TotalScore),
		Highscore:   int(row.Highscore),
	}, nil
}

// Ping checks the ledger database.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

type resultDetails struct {
	Players   []playerDetail `json:"players"`
	Forfeited bool           `json:"forfeited"`
}

type playerDetail struct {
	PlayerID  string      `json:"player_id"`
	Slot      models.Slot `json:"slot"`
	Score     *int        `json:"score,omitempty"`
	TimeTaken *int        `json:"time_taken,omitempty"`
	Winner    bool        `json:"winner"`
}

func resultParams(match *models.Match) (db.InsertMatchResultParams, error) {
	if !match.Status.IsTerminal() || match.WinnerID == nil || match.Reason == nil || match.EndedAt == nil {
		return db.InsertMatchResultParams{}, fmt.Errorf("%w: %s", ErrMatchNotFinished, match.ID)
	}

	details := resultDetails{Forfeited: match.Status == models.MatchStatusForfeited}
	for _, slot := range []models.Slot{models.SlotA, models.SlotB} {
		playerID := match.PlayerIn(slot)
		res := match.Result(slot)
		details.Players = append(details.Players, playerDetail{
			PlayerID:  playerID,
			Slot:      slot,
			Score:     res.Score,
			TimeTaken: res.TimeTaken,
			Winner:    playerID == *match.WinnerID,
		})
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return db.InsertMatchResultParams{}, fmt.Errorf("failed to marshal result details: %w", err)
	}

	return db.InsertMatchResultParams{
		MatchID:  match.ID,
		PlayerA:  match.PlayerA,
		PlayerB:  match.PlayerB,
		WinnerID: *match.WinnerID,
		Status:   string(match.Status),
		Reason:   string(*match.Reason),
		ScoreA:   sqlutil.ToSqlInt32(match.ResultA.Score),
		TimeA:    sqlutil.ToSqlInt32(match.ResultA.TimeTaken),
		ScoreB:   sqlutil.ToSqlInt32(match.ResultB.Score),
		TimeB:    sqlutil.ToSqlInt32(match.ResultB.TimeTaken),
		Details:  pqtype.NullRawMessage{RawMessage: raw, Valid: len(raw) > 0},
		EndedAt:  *match.EndedAt,
	}, nil
}

func statDeltas(match *models.Match) []db.UpsertPlayerStatsParams {
	deltas := make([]db.UpsertPlayerStatsParams, 0, 2)
	for _, slot := range []models.Slot{models.SlotA, models.SlotB} {
		playerID := match.PlayerIn(slot)
		delta := db.UpsertPlayerStatsParams{PlayerID: playerID}
		if playerID == *match.WinnerID {
			delta.Wins = 1
		} else {
			delta.Losses = 1
		}
		if score := match.Result(slot).Score; score != nil {
			delta.TotalScore = int64(*score)
		}
		deltas = append(deltas, delta)
	}
	return deltas
}
