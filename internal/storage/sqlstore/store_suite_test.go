package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"devhelper/internal/domain"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// storeSuite runs the same store checks against any migrated database.
type storeSuite struct {
	suite.Suite
	ctx context.Context
	db  *sqlx.DB

	sessions *SessionStore
	subs     *SubscriptionStore
}

func (s *storeSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, "DELETE FROM sessions")
	s.Require().NoError(err)
	_, err = s.db.ExecContext(s.ctx, "DELETE FROM subscriptions")
	s.Require().NoError(err)

	s.sessions = NewSessionStore(s.db)
	s.subs = NewSubscriptionStore(s.db)
}

func (s *storeSuite) newSession(id, owner string) *domain.Session {
	session, err := domain.NewSession(id, owner, "scope", domain.Destination{ChannelID: "chan", MessageID: "msg"}, 25, 5, testNow)
	s.Require().NoError(err)
	return session
}

func (s *storeSuite) newSubscription(id, owner string) *domain.Subscription {
	sub, err := domain.NewSubscription(id, owner, "scope", domain.Destination{ChannelID: "chan"}, domain.FrequencyDaily, nil, []string{"go", "rust"}, testNow)
	s.Require().NoError(err)
	return sub
}

func (s *storeSuite) TestSession_CreateAndFindActive() {
	session := s.newSession("s-1", "u1")
	s.Require().NoError(s.sessions.Create(s.ctx, session))
	s.Equal(int64(1), session.Version)

	found, err := s.sessions.FindActive(s.ctx, "u1", "scope")
	s.Require().NoError(err)
	s.Equal(session.ID, found.ID)
	s.Equal(domain.SessionFocus, found.Status)
	s.Equal("msg", found.Destination.MessageID)
	s.True(found.EndTime.Equal(testNow.Add(25 * time.Minute)))
	s.False(found.Notified)
}

func (s *storeSuite) TestSession_OneActivePerOwnerAndScope() {
	s.Require().NoError(s.sessions.Create(s.ctx, s.newSession("s-1", "u1")))

	err := s.sessions.Create(s.ctx, s.newSession("s-2", "u1"))

	s.ErrorIs(err, domain.ErrAlreadyActive)
}

func (s *storeSuite) TestSession_TerminalDoesNotBlockNewSession() {
	first := s.newSession("s-1", "u1")
	s.Require().NoError(s.sessions.Create(s.ctx, first))
	s.Require().NoError(first.Cancel(testNow.Add(time.Minute)))
	s.Require().NoError(s.sessions.Update(s.ctx, first, 1))

	s.NoError(s.sessions.Create(s.ctx, s.newSession("s-2", "u1")))
}

func (s *storeSuite) TestSession_FindActiveNotFound() {
	_, err := s.sessions.FindActive(s.ctx, "nobody", "scope")

	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestSession_ListPending() {
	pending := s.newSession("s-1", "u1")
	notified := s.newSession("s-2", "u2")
	cancelled := s.newSession("s-3", "u3")
	for _, session := range []*domain.Session{pending, notified, cancelled} {
		s.Require().NoError(s.sessions.Create(s.ctx, session))
	}
	s.Require().NoError(notified.MarkNotified(testNow.Add(time.Hour)))
	s.Require().NoError(s.sessions.Update(s.ctx, notified, 1))
	s.Require().NoError(cancelled.Cancel(testNow))
	s.Require().NoError(s.sessions.Update(s.ctx, cancelled, 1))

	list, err := s.sessions.ListPending(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("s-1", list[0].ID)
}

func (s *storeSuite) TestSession_UpdateIsVersionConditional() {
	session := s.newSession("s-1", "u1")
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	stale, err := s.sessions.FindActive(s.ctx, "u1", "scope")
	s.Require().NoError(err)

	s.Require().NoError(session.TakeBreak(testNow.Add(30 * time.Minute)))
	s.Require().NoError(s.sessions.Update(s.ctx, session, 1))
	s.Equal(int64(2), session.Version)

	s.Require().NoError(stale.MarkNotified(testNow.Add(30 * time.Minute)))
	err = s.sessions.Update(s.ctx, stale, 1)
	s.ErrorIs(err, domain.ErrConflict)

	current, err := s.sessions.FindActive(s.ctx, "u1", "scope")
	s.Require().NoError(err)
	s.Equal(domain.SessionBreak, current.Status)
	s.False(current.Notified)
}

func (s *storeSuite) TestSession_UpdateMissing() {
	err := s.sessions.Update(s.ctx, s.newSession("ghost", "u1"), 1)

	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestSubscription_RoundTrip() {
	sub := s.newSubscription("sub-1", "u1")
	s.Require().NoError(s.subs.Create(s.ctx, sub))

	found, err := s.subs.FindActive(s.ctx, "u1", "scope")
	s.Require().NoError(err)
	s.Nil(found.LastSent)
	s.Equal(domain.AllSources, found.Sources)
	s.Equal([]string{"go", "rust"}, found.Tags)
	s.Equal(domain.FrequencyDaily, found.Frequency)

	found.MarkSent(testNow.Add(time.Hour))
	s.Require().NoError(s.subs.Update(s.ctx, found, found.Version))

	again, err := s.subs.FindActive(s.ctx, "u1", "scope")
	s.Require().NoError(err)
	s.Require().NotNil(again.LastSent)
	s.True(again.LastSent.Equal(testNow.Add(time.Hour)))
	s.Equal(int64(2), again.Version)
}

func (s *storeSuite) TestSubscription_SoftDeleteAllowsResubscribe() {
	sub := s.newSubscription("sub-1", "u1")
	s.Require().NoError(s.subs.Create(s.ctx, sub))
	s.ErrorIs(s.subs.Create(s.ctx, s.newSubscription("sub-2", "u1")), domain.ErrAlreadyActive)

	sub.Deactivate(testNow)
	s.Require().NoError(s.subs.Update(s.ctx, sub, 1))

	_, err := s.subs.FindActive(s.ctx, "u1", "scope")
	s.ErrorIs(err, domain.ErrNotFound)

	s.NoError(s.subs.Create(s.ctx, s.newSubscription("sub-2", "u1")))
}

func (s *storeSuite) TestSubscription_ListActive() {
	active := s.newSubscription("sub-1", "u1")
	inactive := s.newSubscription("sub-2", "u2")
	s.Require().NoError(s.subs.Create(s.ctx, active))
	s.Require().NoError(s.subs.Create(s.ctx, inactive))
	inactive.Deactivate(testNow)
	s.Require().NoError(s.subs.Update(s.ctx, inactive, 1))

	list, err := s.subs.ListActive(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("sub-1", list[0].ID)
}

func (s *storeSuite) TestSubscription_UpdateConflict() {
	sub := s.newSubscription("sub-1", "u1")
	s.Require().NoError(s.subs.Create(s.ctx, sub))

	sub.MarkSent(testNow)
	s.Require().NoError(s.subs.Update(s.ctx, sub, 1))

	err := s.subs.Update(s.ctx, sub, 1)
	s.ErrorIs(err, domain.ErrConflict)
}
