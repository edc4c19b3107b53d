package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/sqlutil"
)

//go:embed schema.sql
var schemaSQL string

// pairingLockKey serializes pairing across every instance sharing the database.
const pairingLockKey int64 = 0x6475656c

// DefaultDeadlineChannel is the NOTIFY channel used when a report deadline is armed.
const DefaultDeadlineChannel = "duel_deadlines"

const participantColumns = `player_id, connection_id, seeking, seeking_since, updated_at`

const matchColumns = `id, player_a, player_b, score_a, time_a, score_b, time_b, status,
	winner_id, reason, puzzle, report_deadline, created_at, ended_at`

type PostgresConfig struct {
	Pool            *pgxpool.Pool
	DeadlineChannel string
}

// Postgres implements Repository on top of pgx. Pairing is guarded by a
// transaction-scoped advisory lock and match updates by row locks.
type Postgres struct {
	pool            *pgxpool.Pool
	deadlineChannel string
}

var _ Repository = (*Postgres)(nil)

func NewPostgres(cfg *PostgresConfig) (*Postgres, error) {
	if cfg == nil || cfg.Pool == nil {
		return nil, errors.New("postgres pool cannot be nil")
	}
	channel := cfg.DeadlineChannel
	if channel == "" {
		channel = DefaultDeadlineChannel
	}
	return &Postgres{pool: cfg.Pool, deadlineChannel: channel}, nil
}

// Migrate creates the match tables if they do not exist.
func (r *Postgres) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply match schema: %w", err)
	}
	return nil
}

func (r *Postgres) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Postgres) SeekMatch(ctx context.Context, input *SeekMatchInput) (*SeekMatchOutput, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	out := &SeekMatchOutput{}
	err := sqlutil.RunPgx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, pairingLockKey); err != nil {
			return fmt.Errorf("failed to acquire pairing lock: %w", err)
		}

		if err := upsertConnection(ctx, tx, input.PlayerID, input.ConnectionID, input.Now); err != nil {
			return err
		}

		active, err := activeMatchID(ctx, tx, input.PlayerID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrAlreadyInMatch
		}

		opponent, err := scanParticipant(tx.QueryRow(ctx,
			`SELECT `+participantColumns+` FROM duel_participants
			 WHERE seeking AND player_id <> $1
			 ORDER BY seeking_since, player_id
			 LIMIT 1
			 FOR UPDATE`, input.PlayerID))
		if errors.Is(err, pgx.ErrNoRows) {
			_, err = tx.Exec(ctx,
				`UPDATE duel_participants
				 SET seeking = TRUE, seeking_since = COALESCE(seeking_since, $2), updated_at = $2
				 WHERE player_id = $1`, input.PlayerID, input.Now)
			if err != nil {
				return fmt.Errorf("failed to mark participant seeking: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find waiting participant: %w", err)
		}

		match := &models.Match{
			ID:        input.MatchID,
			PlayerA:   opponent.PlayerID,
			PlayerB:   input.PlayerID,
			Status:    models.MatchStatusActive,
			CreatedAt: input.Now,
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO duel_matches (id, player_a, player_b, status, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			match.ID, match.PlayerA, match.PlayerB, string(match.Status), match.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create match: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE duel_participants
			 SET seeking = FALSE, seeking_since = NULL, updated_at = $2
			 WHERE player_id = ANY($1)`,
			[]string{match.PlayerA, match.PlayerB}, input.Now)
		if err != nil {
			return fmt.Errorf("failed to clear seeking flags: %w", err)
		}

		opponent.Seeking = false
		opponent.SeekingSince = nil
		out.Match = match
		out.Opponent = opponent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Postgres) AbortMatch(ctx context.Context, matchID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM duel_matches WHERE id = $1 AND status = 'active'`, matchID)
	if err != nil {
		return fmt.Errorf("failed to abort match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMatchNotActive
	}
	return nil
}

func (r *Postgres) AttachConnection(ctx context.Context, input *AttachConnectionInput) (*models.Match, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var match *models.Match
	err := sqlutil.RunPgx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		m, err := scanMatch(tx.QueryRow(ctx,
			`SELECT `+matchColumns+` FROM duel_matches WHERE id = $1 FOR SHARE`, input.MatchID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load match: %w", err)
		}
		if _, ok := m.SlotOf(input.PlayerID); !ok {
			return ErrNotInMatch
		}
		if m.Status.IsTerminal() {
			return ErrMatchNotActive
		}
		if err := upsertConnection(ctx, tx, input.PlayerID, input.ConnectionID, input.Now); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (r *Postgres) ReleaseConnection(ctx context.Context, connectionID string) (*ReleaseConnectionOutput, error) {
	out := &ReleaseConnectionOutput{}
	err := sqlutil.RunPgx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		p, err := scanParticipant(tx.QueryRow(ctx,
			`SELECT `+participantColumns+` FROM duel_participants
			 WHERE connection_id = $1 FOR UPDATE`, connectionID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrParticipantNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load participant: %w", err)
		}

		active, err := activeMatchID(ctx, tx, p.PlayerID)
		if err != nil {
			return err
		}

		out.Participant = p
		out.WasSeeking = p.Seeking
		out.ActiveMatchID = active

		switch {
		case p.Seeking:
			_, err = tx.Exec(ctx,
				`UPDATE duel_participants
				 SET seeking = FALSE, seeking_since = NULL, updated_at = NOW()
				 WHERE player_id = $1`, p.PlayerID)
		case active == nil:
			_, err = tx.Exec(ctx, `DELETE FROM duel_participants WHERE player_id = $1`, p.PlayerID)
		}
		if err != nil {
			return fmt.Errorf("failed to release participant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Postgres) ExpireSeekers(ctx context.Context, before time.Time, limit int) ([]*models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE duel_participants
		 SET seeking = FALSE, seeking_since = NULL, updated_at = NOW()
		 WHERE player_id IN (
			SELECT player_id FROM duel_participants
			WHERE seeking AND seeking_since < $1
			ORDER BY seeking_since
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+participantColumns, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to expire seekers: %w", err)
	}
	defer rows.Close()

	var expired []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired seeker: %w", err)
		}
		expired = append(expired, p)
	}
	return expired, rows.Err()
}

func (r *Postgres) GetParticipant(ctx context.Context, playerID string) (*models.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM duel_participants WHERE player_id = $1`, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *Postgres) GetMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	m, err := scanMatch(r.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM duel_matches WHERE id = $1`, matchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

func (r *Postgres) UpdateMatch(ctx context.Context, matchID uuid.UUID, fn MatchMutation) (*models.Match, error) {
	var updated *models.Match
	err := sqlutil.RunPgx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		m, err := scanMatch(tx.QueryRow(ctx,
			`SELECT `+matchColumns+` FROM duel_matches WHERE id = $1 FOR UPDATE`, matchID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock match: %w", err)
		}

		prevDeadline := m.ReportDeadline
		if err := fn(m); err != nil {
			if errors.Is(err, ErrNoChange) {
				updated = m
				return nil
			}
			return err
		}

		var puzzle []byte
		if m.Puzzle != nil {
			if puzzle, err = json.Marshal(m.Puzzle); err != nil {
				return fmt.Errorf("failed to marshal puzzle: %w", err)
			}
		}

		var reason *string
		if m.Reason != nil {
			s := string(*m.Reason)
			reason = &s
		}

		_, err = tx.Exec(ctx,
			`UPDATE duel_matches
			 SET score_a = $2, time_a = $3, score_b = $4, time_b = $5, status = $6,
			     winner_id = $7, reason = $8, puzzle = $9, report_deadline = $10, ended_at = $11
			 WHERE id = $1`,
			m.ID,
			sqlutil.ToPgInt4(m.ResultA.Score), sqlutil.ToPgInt4(m.ResultA.TimeTaken),
			sqlutil.ToPgInt4(m.ResultB.Score), sqlutil.ToPgInt4(m.ResultB.TimeTaken),
			string(m.Status), sqlutil.ToPgText(m.WinnerID), sqlutil.ToPgText(reason), puzzle,
			sqlutil.ToPgTimestamptz(m.ReportDeadline), sqlutil.ToPgTimestamptz(m.EndedAt))
		if err != nil {
			return fmt.Errorf("failed to write match: %w", err)
		}

		if m.ReportDeadline != nil && (prevDeadline == nil || !prevDeadline.Equal(*m.ReportDeadline)) {
			if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, r.deadlineChannel, m.ID.String()); err != nil {
				return fmt.Errorf("failed to notify deadline listeners: %w", err)
			}
		}

		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Postgres) NextDeadline(ctx context.Context) (*time.Time, error) {
	var next pgtype.Timestamptz
	err := r.pool.QueryRow(ctx,
		`SELECT MIN(report_deadline) FROM duel_matches WHERE status = 'active'`).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	return sqlutil.FromPgTimestamptz(next), nil
}

func (r *Postgres) DueMatches(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM duel_matches
		 WHERE status = 'active' AND report_deadline <= $1
		 ORDER BY report_deadline
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due matches: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan due match: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func upsertConnection(ctx context.Context, tx pgx.Tx, playerID, connectionID string, now time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO duel_participants (player_id, connection_id, seeking, updated_at)
		 VALUES ($1, $2, FALSE, $3)
		 ON CONFLICT (player_id) DO UPDATE
		 SET connection_id = EXCLUDED.connection_id, updated_at = EXCLUDED.updated_at`,
		playerID, connectionID, now)
	if err != nil {
		return fmt.Errorf("failed to record connection: %w", err)
	}
	return nil
}

func activeMatchID(ctx context.Context, tx pgx.Tx, playerID string) (*uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx,
		`SELECT id FROM duel_matches
		 WHERE status = 'active' AND (player_a = $1 OR player_b = $1)
		 LIMIT 1`, playerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active match: %w", err)
	}
	return &id, nil
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var (
		p     models.Participant
		since pgtype.Timestamptz
	)
	if err := row.Scan(&p.PlayerID, &p.ConnectionID, &p.Seeking, &since, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.SeekingSince = sqlutil.FromPgTimestamptz(since)
	return &p, nil
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var (
		m                            models.Match
		scoreA, timeA, scoreB, timeB pgtype.Int4
		status                       string
		winner, reason               pgtype.Text
		puzzle                       []byte
		deadline, endedAt            pgtype.Timestamptz
	)
	err := row.Scan(&m.ID, &m.PlayerA, &m.PlayerB, &scoreA, &timeA, &scoreB, &timeB, &status,
		&winner, &reason, &puzzle, &deadline, &m.CreatedAt, &endedAt)
	if err != nil {
		return nil, err
	}

	m.ResultA = models.PlayerResult{Score: sqlutil.FromPgInt4(scoreA), TimeTaken: sqlutil.FromPgInt4(timeA)}
	m.ResultB = models.PlayerResult{Score: sqlutil.FromPgInt4(scoreB), TimeTaken: sqlutil.FromPgInt4(timeB)}
	m.Status = models.MatchStatus(status)
	m.WinnerID = sqlutil.FromPgText(winner)
	if r := sqlutil.FromPgText(reason); r != nil {
		er := models.EndReason(*r)
		m.Reason = &er
	}
	m.ReportDeadline = sqlutil.FromPgTimestamptz(deadline)
	m.EndedAt = sqlutil.FromPgTimestamptz(endedAt)

	if len(puzzle) > 0 {
		var p models.Puzzle
		if err := json.Unmarshal(puzzle, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal puzzle: %w", err)
		}
		m.Puzzle = &p
	}
	return &m, nil
}
