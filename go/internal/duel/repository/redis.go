package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	participantKeyPrefix = "duel:participant:"
	connectionKeyPrefix  = "duel:connection:"
	matchKeyPrefix       = "duel:match:"
	playerMatchKeyPrefix = "duel:player_match:"
	seekersKey           = "duel:seekers"
	deadlinesKey         = "duel:deadlines"

	defaultMaxRetries = 100
)

// RedisConfig holds configuration for the Redis repository
type RedisConfig struct {
	RedisClient *redis.Client
	// MaxRetries bounds how often an optimistic transaction is retried after
	// a watched key changed underneath it.
	MaxRetries int
}

// Redis implements Repository with WATCH/MULTI/EXEC optimistic transactions.
// The seekers sorted set is watched by every pairing attempt, which makes
// pairing serializable.
type Redis struct {
	client     *redis.Client
	maxRetries int
}

var _ Repository = (*Redis)(nil)

func NewRedis(cfg *RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Redis{client: cfg.RedisClient, maxRetries: retries}, nil
}

func participantKey(playerID string) string   { return participantKeyPrefix + playerID }
func connectionKey(connectionID string) string { return connectionKeyPrefix + connectionID }
func matchKey(id uuid.UUID) string             { return matchKeyPrefix + id.String() }
func playerMatchKey(playerID string) string   { return playerMatchKeyPrefix + playerID }

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// watch runs fn as an optimistic transaction, retrying when a watched key
// was modified before EXEC.
func (r *Redis) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (r *Redis) SeekMatch(ctx context.Context, input *SeekMatchInput) (*SeekMatchOutput, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var out *SeekMatchOutput
	err := r.watch(ctx, func(tx *redis.Tx) error {
		out = &SeekMatchOutput{}

		if err := tx.Get(ctx, playerMatchKey(input.PlayerID)).Err(); err == nil {
			return ErrAlreadyInMatch
		} else if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to look up active match: %w", err)
		}

		self, err := getParticipant(ctx, tx, input.PlayerID)
		if err != nil && !errors.Is(err, ErrParticipantNotFound) {
			return err
		}

		waiting, err := tx.ZRange(ctx, seekersKey, 0, 1).Result()
		if err != nil {
			return fmt.Errorf("failed to read seekers: %w", err)
		}
		var opponentID string
		for _, id := range waiting {
			if id != input.PlayerID {
				opponentID = id
				break
			}
		}

		if opponentID == "" {
			p := &models.Participant{
				PlayerID:     input.PlayerID,
				ConnectionID: input.ConnectionID,
				Seeking:      true,
				SeekingSince: &input.Now,
				UpdatedAt:    input.Now,
			}
			if self != nil && self.Seeking && self.SeekingSince != nil {
				p.SeekingSince = self.SeekingSince
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if err := setParticipant(ctx, pipe, p, self); err != nil {
					return err
				}
				pipe.ZAdd(ctx, seekersKey, redis.Z{
					Score:  float64(p.SeekingSince.UnixMilli()),
					Member: p.PlayerID,
				})
				return nil
			})
			return err
		}

		if err := tx.Watch(ctx, participantKey(opponentID)).Err(); err != nil {
			return fmt.Errorf("failed to watch opponent: %w", err)
		}
		opponent, err := getParticipant(ctx, tx, opponentID)
		if err != nil {
			return fmt.Errorf("failed to load waiting participant %s: %w", opponentID, err)
		}
		opponent.Seeking = false
		opponent.SeekingSince = nil
		opponent.UpdatedAt = input.Now

		prevSelf := self
		self = &models.Participant{
			PlayerID:     input.PlayerID,
			ConnectionID: input.ConnectionID,
			UpdatedAt:    input.Now,
		}

		match := &models.Match{
			ID:        input.MatchID,
			PlayerA:   opponent.PlayerID,
			PlayerB:   input.PlayerID,
			Status:    models.MatchStatusActive,
			CreatedAt: input.Now,
		}
		data, err := json.Marshal(match)
		if err != nil {
			return fmt.Errorf("failed to marshal match: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, matchKey(match.ID), data, 0)
			pipe.Set(ctx, playerMatchKey(match.PlayerA), match.ID.String(), 0)
			pipe.Set(ctx, playerMatchKey(match.PlayerB), match.ID.String(), 0)
			pipe.ZRem(ctx, seekersKey, match.PlayerA, match.PlayerB)
			if err := setParticipant(ctx, pipe, opponent, opponent); err != nil {
				return err
			}
			return setParticipant(ctx, pipe, self, prevSelf)
		})
		if err != nil {
			return err
		}

		out.Match = match
		out.Opponent = opponent
		return nil
	}, seekersKey, participantKey(input.PlayerID), playerMatchKey(input.PlayerID))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Redis) AbortMatch(ctx context.Context, matchID uuid.UUID) error {
	return r.watch(ctx, func(tx *redis.Tx) error {
		m, err := getMatch(ctx, tx, matchID)
		if err != nil {
			if errors.Is(err, ErrMatchNotFound) {
				return ErrMatchNotActive
			}
			return err
		}
		if m.Status.IsTerminal() {
			return ErrMatchNotActive
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, matchKey(matchID), playerMatchKey(m.PlayerA), playerMatchKey(m.PlayerB))
			pipe.ZRem(ctx, deadlinesKey, matchID.String())
			return nil
		})
		return err
	}, matchKey(matchID))
}

func (r *Redis) AttachConnection(ctx context.Context, input *AttachConnectionInput) (*models.Match, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var match *models.Match
	err := r.watch(ctx, func(tx *redis.Tx) error {
		m, err := getMatch(ctx, tx, input.MatchID)
		if err != nil {
			return err
		}
		if _, ok := m.SlotOf(input.PlayerID); !ok {
			return ErrNotInMatch
		}
		if m.Status.IsTerminal() {
			return ErrMatchNotActive
		}

		prev, err := getParticipant(ctx, tx, input.PlayerID)
		if err != nil && !errors.Is(err, ErrParticipantNotFound) {
			return err
		}
		p := &models.Participant{
			PlayerID:     input.PlayerID,
			ConnectionID: input.ConnectionID,
			UpdatedAt:    input.Now,
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return setParticipant(ctx, pipe, p, prev)
		})
		if err != nil {
			return err
		}
		match = m
		return nil
	}, matchKey(input.MatchID), participantKey(input.PlayerID))
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (r *Redis) ReleaseConnection(ctx context.Context, connectionID string) (*ReleaseConnectionOutput, error) {
	var out *ReleaseConnectionOutput
	err := r.watch(ctx, func(tx *redis.Tx) error {
		playerID, err := tx.Get(ctx, connectionKey(connectionID)).Result()
		if errors.Is(err, redis.Nil) {
			return ErrParticipantNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to resolve connection: %w", err)
		}

		if err := tx.Watch(ctx, participantKey(playerID), playerMatchKey(playerID)).Err(); err != nil {
			return fmt.Errorf("failed to watch participant: %w", err)
		}
		p, err := getParticipant(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if p.ConnectionID != connectionID {
			return ErrParticipantNotFound
		}

		out = &ReleaseConnectionOutput{Participant: p, WasSeeking: p.Seeking}
		active, err := tx.Get(ctx, playerMatchKey(playerID)).Result()
		switch {
		case err == nil:
			id, perr := uuid.Parse(active)
			if perr != nil {
				return fmt.Errorf("corrupt active match id %q: %w", active, perr)
			}
			out.ActiveMatchID = &id
		case !errors.Is(err, redis.Nil):
			return fmt.Errorf("failed to look up active match: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			switch {
			case p.Seeking:
				cleared := *p
				cleared.Seeking = false
				cleared.SeekingSince = nil
				pipe.ZRem(ctx, seekersKey, playerID)
				return setParticipant(ctx, pipe, &cleared, p)
			case out.ActiveMatchID == nil:
				pipe.Del(ctx, participantKey(playerID), connectionKey(connectionID))
			}
			return nil
		})
		return err
	}, connectionKey(connectionID))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Redis) ExpireSeekers(ctx context.Context, before time.Time, limit int) ([]*models.Participant, error) {
	ids, err := r.client.ZRangeByScore(ctx, seekersKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stale seekers: %w", err)
	}

	var expired []*models.Participant
	for _, playerID := range ids {
		var cleared *models.Participant
		err := r.watch(ctx, func(tx *redis.Tx) error {
			cleared = nil
			p, err := getParticipant(ctx, tx, playerID)
			if errors.Is(err, ErrParticipantNotFound) {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.ZRem(ctx, seekersKey, playerID)
					return nil
				})
				return err
			}
			if err != nil {
				return err
			}
			if !p.Seeking || p.SeekingSince == nil || !p.SeekingSince.Before(before) {
				return nil
			}
			next := *p
			next.Seeking = false
			next.SeekingSince = nil
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZRem(ctx, seekersKey, playerID)
				return setParticipant(ctx, pipe, &next, p)
			})
			if err == nil {
				cleared = &next
			}
			return err
		}, participantKey(playerID))
		if err != nil {
			return expired, fmt.Errorf("failed to expire seeker %s: %w", playerID, err)
		}
		if cleared != nil {
			expired = append(expired, cleared)
		}
	}
	return expired, nil
}

func (r *Redis) GetParticipant(ctx context.Context, playerID string) (*models.Participant, error) {
	return getParticipant(ctx, r.client, playerID)
}

func (r *Redis) GetMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	return getMatch(ctx, r.client, matchID)
}

func (r *Redis) UpdateMatch(ctx context.Context, matchID uuid.UUID, fn MatchMutation) (*models.Match, error) {
	var updated *models.Match
	err := r.watch(ctx, func(tx *redis.Tx) error {
		m, err := getMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		wasActive := !m.Status.IsTerminal()
		if err := fn(m); err != nil {
			if errors.Is(err, ErrNoChange) {
				updated = m
				return nil
			}
			return err
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal match: %w", err)
		}

		// Pointers are only released on the active to terminal transition and
		// only while they still name this match; the players may have moved on.
		var release []string
		if wasActive && m.Status.IsTerminal() {
			if release, err = ownedPlayerMatchKeys(ctx, tx, m); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, matchKey(m.ID), data, 0)
			switch {
			case m.Status.IsTerminal():
				if len(release) > 0 {
					pipe.Del(ctx, release...)
				}
				pipe.ZRem(ctx, deadlinesKey, m.ID.String())
			case m.ReportDeadline != nil:
				pipe.ZAdd(ctx, deadlinesKey, redis.Z{
					Score:  float64(m.ReportDeadline.UnixMilli()),
					Member: m.ID.String(),
				})
			default:
				pipe.ZRem(ctx, deadlinesKey, m.ID.String())
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = m
		return nil
	}, matchKey(matchID))
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ownedPlayerMatchKeys watches the players' active match pointers and returns
// the ones that still point at m.
func ownedPlayerMatchKeys(ctx context.Context, tx *redis.Tx, m *models.Match) ([]string, error) {
	keys := []string{playerMatchKey(m.PlayerA), playerMatchKey(m.PlayerB)}
	if err := tx.Watch(ctx, keys...).Err(); err != nil {
		return nil, fmt.Errorf("failed to watch active match pointers: %w", err)
	}

	owned := make([]string, 0, len(keys))
	for _, key := range keys {
		active, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read active match pointer: %w", err)
		}
		if active == m.ID.String() {
			owned = append(owned, key)
		}
	}
	return owned, nil
}

func (r *Redis) NextDeadline(ctx context.Context) (*time.Time, error) {
	next, err := r.client.ZRangeWithScores(ctx, deadlinesKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	if len(next) == 0 {
		return nil, nil
	}
	t := time.UnixMilli(int64(next[0].Score)).UTC()
	return &t, nil
}

func (r *Redis) DueMatches(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	members, err := r.client.ZRangeByScore(ctx, deadlinesKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due matches: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("corrupt deadline member %q: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// getter is the read side shared by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getParticipant(ctx context.Context, c getter, playerID string) (*models.Participant, error) {
	data, err := c.Get(ctx, participantKey(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	var p models.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participant: %w", err)
	}
	return &p, nil
}

// setParticipant queues the writes for p, moving the connection index off
// the connection recorded in prev.
func setParticipant(ctx context.Context, pipe redis.Pipeliner, p, prev *models.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}
	pipe.Set(ctx, participantKey(p.PlayerID), data, 0)
	pipe.Set(ctx, connectionKey(p.ConnectionID), p.PlayerID, 0)
	if prev != nil && prev.ConnectionID != "" && prev.ConnectionID != p.ConnectionID {
		pipe.Del(ctx, connectionKey(prev.ConnectionID))
	}
	return nil
}

func getMatch(ctx context.Context, c getter, matchID uuid.UUID) (*models.Match, error) {
	data, err := c.Get(ctx, matchKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	var m models.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}
	return &m, nil
}
