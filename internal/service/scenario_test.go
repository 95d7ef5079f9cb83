package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devhelper/internal/domain"
	"devhelper/internal/scheduler"
)

// memStore is a versioned in-memory store for both entity kinds.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	subs     map[string]domain.Subscription
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]domain.Session),
		subs:     make(map[string]domain.Subscription),
	}
}

type memSessions struct{ *memStore }

func (m memSessions) Create(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.OwnerID == session.OwnerID && s.ScopeID == session.ScopeID && s.IsActive() {
			return domain.ErrAlreadyActive
		}
	}
	session.Version = 1
	m.sessions[session.ID] = *session
	return nil
}

func (m memSessions) FindActive(_ context.Context, ownerID, scopeID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && s.ScopeID == scopeID && s.IsActive() {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m memSessions) ListPending(context.Context) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.IsActive() && !s.Notified {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m memSessions) Update(_ context.Context, session *domain.Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[session.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrConflict
	}
	session.Version = expectedVersion + 1
	m.sessions[session.ID] = *session
	return nil
}

func (m memSessions) get(id string) domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

type memSubs struct{ *memStore }

func (m memSubs) Create(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.OwnerID == sub.OwnerID && s.ScopeID == sub.ScopeID && s.Active {
			return domain.ErrAlreadyActive
		}
	}
	sub.Version = 1
	m.subs[sub.ID] = *sub
	return nil
}

func (m memSubs) FindActive(_ context.Context, ownerID, scopeID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.OwnerID == ownerID && s.ScopeID == scopeID && s.Active {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m memSubs) ListActive(context.Context) ([]*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range m.subs {
		if s.Active {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m memSubs) Update(_ context.Context, sub *domain.Subscription, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.subs[sub.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrConflict
	}
	sub.Version = expectedVersion + 1
	m.subs[sub.ID] = *sub
	return nil
}

type recordingGateway struct {
	mu        sync.Mutex
	delivered []domain.Payload
}

func (g *recordingGateway) Resolve(context.Context, domain.Destination) error { return nil }

func (g *recordingGateway) Deliver(_ context.Context, _ domain.Destination, payload domain.Payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delivered = append(g.delivered, payload)
	return nil
}

func (g *recordingGateway) texts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, p := range g.delivered {
		out = append(out, p.Text)
	}
	return out
}

type textRenderer struct{}

func (textRenderer) FocusComplete(*domain.Session) domain.Payload {
	return domain.Payload{Text: "focus complete"}
}
func (textRenderer) BreakComplete(*domain.Session) domain.Payload {
	return domain.Payload{Text: "break complete"}
}
func (textRenderer) BreakStarted(*domain.Session) domain.Payload { return domain.Payload{} }
func (textRenderer) Cancelled(*domain.Session) domain.Payload    { return domain.Payload{} }
func (textRenderer) Digest(_ *domain.Subscription, items []domain.Item) domain.Payload {
	return domain.Payload{Text: fmt.Sprintf("digest of %d", len(items))}
}

type staticFetcher struct{ items []domain.Item }

func (f staticFetcher) Fetch(context.Context, []string, []string, int) ([]domain.Item, error) {
	return f.items, nil
}

type harness struct {
	now      time.Time
	sessions memSessions
	subs     memSubs
	gateway  *recordingGateway

	sessionSvc *SessionService
	subSvc     *SubscriptionService
	notifier   *SessionNotifier
	dispatcher *DigestDispatcher

	sessionPoller *scheduler.Poller[*domain.Session]
	digestPoller  *scheduler.Poller[*domain.Subscription]
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	h := &harness{
		now:      testNow,
		sessions: memSessions{store},
		subs:     memSubs{store},
		gateway:  &recordingGateway{},
	}
	clock := func() time.Time { return h.now }
	logger := discardLogger()
	fetcher := staticFetcher{items: []domain.Item{{Source: domain.SourceHackerNews, Title: "Show HN"}}}

	h.sessionSvc = NewSessionService(h.sessions, h.gateway, textRenderer{}, logger, WithClock(clock))
	h.subSvc = NewSubscriptionService(h.subs, logger, WithClock(clock))
	h.notifier = NewSessionNotifier(h.sessions, h.gateway, textRenderer{}, logger)
	h.dispatcher = NewDigestDispatcher(h.subs, h.gateway, fetcher, textRenderer{}, 5, logger)

	cfg := scheduler.Config{Interval: time.Minute}
	h.sessionPoller = scheduler.NewPoller(h.notifier, cfg, logger, scheduler.WithClock(clock))
	h.digestPoller = scheduler.NewPoller(h.dispatcher, cfg, logger, scheduler.WithClock(clock))
	return h
}

func (h *harness) start(t *testing.T) *domain.Session {
	t.Helper()
	session, err := h.sessionSvc.Start(context.Background(), StartSessionInput{
		OwnerID:      "u1",
		ScopeID:      "s1",
		Destination:  testDest,
		FocusMinutes: 25,
		BreakMinutes: 5,
	})
	require.NoError(t, err)
	return session
}

func (h *harness) tickSessions(t *testing.T) *scheduler.TickStats {
	t.Helper()
	stats, err := h.sessionPoller.Tick(context.Background())
	require.NoError(t, err)
	return stats
}

func TestScenario_FocusThenBreakCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.start(t)

	h.now = testNow.Add(24 * time.Minute)
	h.tickSessions(t)
	assert.Empty(t, h.gateway.texts(), "no notice before end time")

	h.now = testNow.Add(25*time.Minute + time.Second)
	h.tickSessions(t)
	stored := h.sessions.get(session.ID)
	assert.Equal(t, domain.SessionFocus, stored.Status)
	assert.True(t, stored.Notified)
	assert.Equal(t, []string{"focus complete"}, h.gateway.texts())

	h.tickSessions(t)
	assert.Len(t, h.gateway.texts(), 1, "second tick must not redeliver")

	breakAt := h.now
	onBreak, err := h.sessionSvc.TakeBreak(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionBreak, onBreak.Status)
	assert.False(t, onBreak.Notified)
	assert.Equal(t, breakAt.Add(5*time.Minute), onBreak.EndTime)

	h.now = breakAt.Add(5*time.Minute + time.Second)
	h.tickSessions(t)
	stored = h.sessions.get(session.ID)
	assert.Equal(t, domain.SessionCompleted, stored.Status)
	assert.True(t, stored.Notified)
	assert.Equal(t, []string{"focus complete", "break complete"}, h.gateway.texts())
}

func TestScenario_StartWhileActiveIsRejected(t *testing.T) {
	h := newHarness(t)
	first := h.start(t)

	_, err := h.sessionSvc.Start(context.Background(), StartSessionInput{OwnerID: "u1", ScopeID: "s1", Destination: testDest})

	require.ErrorIs(t, err, domain.ErrAlreadyActive)
	stored := h.sessions.get(first.ID)
	assert.Equal(t, first.Version, stored.Version)
	assert.Len(t, h.sessions.sessions, 1)
}

func TestScenario_DailyDigestCadence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sub, err := h.subSvc.Subscribe(ctx, SubscribeInput{
		OwnerID:     "u2",
		ScopeID:     "s2",
		Destination: testDest,
		Frequency:   domain.FrequencyDaily,
	})
	require.NoError(t, err)
	require.Nil(t, sub.LastSent)

	stats, err := h.digestPoller.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Delivered)

	stored, err := h.subs.FindActive(ctx, "u2", "s2")
	require.NoError(t, err)
	require.NotNil(t, stored.LastSent)
	assert.Equal(t, testNow, *stored.LastSent)
	version := stored.Version

	h.now = testNow.Add(time.Hour)
	stats, err = h.digestPoller.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Due)

	stored, err = h.subs.FindActive(ctx, "u2", "s2")
	require.NoError(t, err)
	assert.Equal(t, version, stored.Version, "no mutation before the period elapses")
	assert.Equal(t, []string{"digest of 1"}, h.gateway.texts())
}

func TestScenario_CancelledSessionIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.start(t)

	h.now = testNow.Add(26 * time.Minute)
	h.tickSessions(t)
	_, err := h.sessionSvc.TakeBreak(ctx, "u1", "s1")
	require.NoError(t, err)

	cancelled, err := h.sessionSvc.Cancel(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCancelled, cancelled.Status)
	version := h.sessions.get(session.ID).Version

	h.now = testNow.Add(time.Hour)
	stats := h.tickSessions(t)
	assert.Zero(t, stats.Candidates)
	assert.Equal(t, version, h.sessions.get(session.ID).Version)
	assert.Equal(t, []string{"focus complete"}, h.gateway.texts())

	_, err = h.sessionSvc.Start(ctx, StartSessionInput{OwnerID: "u1", ScopeID: "s1", Destination: testDest})
	assert.NoError(t, err)
}

func TestScenario_CancelRacingNotifyWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.start(t)
	h.now = testNow.Add(26 * time.Minute)

	listed, err := h.notifier.Candidates(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = h.sessionSvc.Cancel(ctx, "u1", "s1")
	require.NoError(t, err)

	err = h.notifier.Commit(ctx, listed[0], h.now)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.SessionCancelled, h.sessions.get(listed[0].ID).Status)
}
