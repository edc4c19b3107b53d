package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/wordduel/go/internal/auth"
	"github.com/mcdev12/wordduel/go/internal/duel/coordinator"
	"github.com/mcdev12/wordduel/go/internal/duel/events"
	"github.com/stretchr/testify/suite"
)

type DispatcherTestSuite struct {
	suite.Suite
	coord      *fakeCoordinator
	dispatcher *Dispatcher
	ctx        context.Context
	matchID    uuid.UUID
}

func (s *DispatcherTestSuite) SetupTest() {
	s.coord = newFakeCoordinator()
	s.dispatcher = NewDispatcher(s.coord, clockwork.NewFakeClockAt(time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC)))
	s.ctx = auth.WithPlayer(context.Background(), &auth.Player{ID: "alice", Username: "alice"})
	s.matchID = uuid.New()
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func (s *DispatcherTestSuite) frame(v map[string]any) []byte {
	data, err := json.Marshal(v)
	s.Require().NoError(err)
	return data
}

func (s *DispatcherTestSuite) errorMessage(ev *events.Event) string {
	s.Require().NotNil(ev)
	s.Require().Equal(events.EventTypeError, ev.Type)
	var payload events.ErrorPayload
	s.Require().NoError(json.Unmarshal(ev.Data, &payload))
	return payload.Message
}

func (s *DispatcherTestSuite) TestSeekMatch() {
	reply := s.dispatcher.HandleFrame(s.ctx, "conn-1", s.frame(map[string]any{"type": "seek-match"}))

	s.Nil(reply)
	s.Equal([]call{{Op: "seek", PlayerID: "alice", ConnectionID: "conn-1"}}, s.coord.Calls())
}

func (s *DispatcherTestSuite) TestMatchFrames() {
	id := s.matchID.String()

	s.Nil(s.dispatcher.HandleFrame(s.ctx, "conn-2", s.frame(map[string]any{"type": "rejoin-match", "matchId": id})))
	s.Nil(s.dispatcher.HandleFrame(s.ctx, "conn-2", s.frame(map[string]any{"type": "report-finish", "matchId": id, "score": 30, "timeTaken": 0})))
	s.Nil(s.dispatcher.HandleFrame(s.ctx, "conn-2", s.frame(map[string]any{"type": "forfeit", "matchId": id})))

	s.Equal([]call{
		{Op: "rejoin", PlayerID: "alice", MatchID: s.matchID, ConnectionID: "conn-2"},
		{Op: "report", PlayerID: "alice", MatchID: s.matchID, Score: 30, TimeTaken: 0},
		{Op: "forfeit", PlayerID: "alice", MatchID: s.matchID},
	}, s.coord.Calls())
}

func (s *DispatcherTestSuite) TestCheckAnswer() {
	reply := s.dispatcher.HandleFrame(s.ctx, "conn-1", s.frame(map[string]any{
		"type": "check-answer", "matchId": s.matchID.String(), "wordId": "101", "candidate": "cat",
	}))

	s.Require().NotNil(reply)
	s.Equal(events.EventTypeAnswerResult, reply.Type)
	s.Equal(s.matchID.String(), reply.MatchID)
	var payload events.AnswerResultPayload
	s.Require().NoError(json.Unmarshal(reply.Data, &payload))
	s.Equal(events.AnswerResultPayload{WordID: "101", Correct: true, ScoreDelta: 10}, payload)
}

func (s *DispatcherTestSuite) TestRejectedFrames() {
	id := s.matchID.String()
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "not json", data: []byte("{"), want: string(ErrMalformedFrame)},
		{name: "unknown type", data: s.frame(map[string]any{"type": "dance", "matchId": id}), want: string(ErrUnknownFrame)},
		{name: "missing match id", data: s.frame(map[string]any{"type": "forfeit"}), want: string(ErrMalformedFrame)},
		{name: "bad match id", data: s.frame(map[string]any{"type": "forfeit", "matchId": "nope"}), want: string(coordinator.ErrMatchNotFound)},
		{name: "report without score", data: s.frame(map[string]any{"type": "report-finish", "matchId": id, "timeTaken": 4}), want: string(ErrMalformedFrame)},
		{name: "check without word", data: s.frame(map[string]any{"type": "check-answer", "matchId": id}), want: string(ErrMalformedFrame)},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, s.errorMessage(s.dispatcher.HandleFrame(s.ctx, "conn-1", tt.data)))
		})
	}
	s.Empty(s.coord.Calls())
}

func (s *DispatcherTestSuite) TestUnauthenticated() {
	reply := s.dispatcher.HandleFrame(context.Background(), "conn-1", s.frame(map[string]any{"type": "seek-match"}))

	s.Equal(string(coordinator.ErrUnauthenticated), s.errorMessage(reply))
	s.Empty(s.coord.Calls())
}

func (s *DispatcherTestSuite) TestCoordinatorErrors() {
	s.coord.err = coordinator.ErrMatchNotActive
	reply := s.dispatcher.HandleFrame(s.ctx, "conn-1", s.frame(map[string]any{"type": "forfeit", "matchId": s.matchID.String()}))
	s.Equal(string(coordinator.ErrMatchNotActive), s.errorMessage(reply))
	s.Equal(s.matchID.String(), reply.MatchID)

	s.coord.err = errors.New("connection refused")
	reply = s.dispatcher.HandleFrame(s.ctx, "conn-1", s.frame(map[string]any{"type": "seek-match"}))
	s.Equal("internal error", s.errorMessage(reply))
}

func (s *DispatcherTestSuite) TestConnectionClosed() {
	s.dispatcher.ConnectionClosed(s.ctx, "conn-9")

	s.Equal([]call{{Op: "lost", ConnectionID: "conn-9"}}, s.coord.Calls())
}
