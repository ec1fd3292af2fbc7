package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inbox-manager-api/internal/changefeed"
	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
	"github.com/noah-isme/inbox-manager-api/internal/repository"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

type stubStore struct {
	mu      sync.Mutex
	table   string
	records []models.Record
	err     error
	selects int
}

func (s *stubStore) Table() string { return s.table }

func (s *stubStore) Select(_ context.Context, q query.Query) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selects++
	if s.err != nil {
		return nil, s.err
	}
	return query.Apply(q, s.records), nil
}

func (s *stubStore) FindByID(context.Context, string) (models.Record, error) {
	return nil, sql.ErrNoRows
}

func (s *stubStore) Update(context.Context, string, models.RecordChanges) (models.Record, error) {
	return nil, sql.ErrNoRows
}

func (s *stubStore) Delete(context.Context, string) (models.Record, error) {
	return nil, sql.ErrNoRows
}

func (s *stubStore) Count(context.Context, models.Predicate) (int, error) { return 0, nil }

func (s *stubStore) Ping(context.Context) error { return nil }

func (s *stubStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubStore) selectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selects
}

type stubFeed struct {
	mu         sync.Mutex
	err        error
	subscribes int
	closed     int
}

func (f *stubFeed) Subscribe(context.Context, string, changefeed.Handler) (FeedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.err != nil {
		return nil, f.err
	}
	return stubSubscription{feed: f}, nil
}

type stubSubscription struct {
	feed *stubFeed
}

func (s stubSubscription) Close() error {
	s.feed.mu.Lock()
	s.feed.closed++
	s.feed.mu.Unlock()
	return nil
}

var testBase = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func manualReplyRows() []models.Record {
	return []models.Record{
		{"id": "a", "created_at": testBase.Add(1 * time.Hour), "permission": "Manual Handle", "replied": false, "removed": false},
		{"id": "b", "created_at": testBase.Add(2 * time.Hour), "permission": "Manual Handle", "replied": false, "removed": false},
		{"id": "c", "created_at": testBase.Add(3 * time.Hour), "permission": "Manual Handle", "replied": false, "removed": false},
		{"id": "d", "created_at": testBase.Add(4 * time.Hour), "permission": "Manual Handle", "replied": true, "removed": false},
		{"id": "e", "created_at": testBase.Add(5 * time.Hour), "permission": "Waiting", "replied": false, "removed": false},
	}
}

func manualReplyQueue(t *testing.T) models.QueueDefinition {
	t.Helper()
	catalog, err := NewQueueCatalog(DefaultQueues())
	require.NoError(t, err)
	def, err := catalog.Get("manual-reply")
	require.NoError(t, err)
	return def
}

func newMemoryConnection(t *testing.T, rows ...models.Record) (*Connection, *repository.MemoryRecordStore, *changefeed.Hub) {
	t.Helper()
	hub := changefeed.NewHub(changefeed.HubConfig{})
	store := repository.NewMemoryRecordStore("inbox", hub)
	store.Seed(rows...)
	conn, err := NewConnection(ConnectionParams{Driver: "memory", Store: store, Feed: NewHubFeed(hub)})
	require.NoError(t, err)
	return conn, store, hub
}

func newStubConnection(t *testing.T, store *stubStore, feed ChangeFeed) *Connection {
	t.Helper()
	conn, err := NewConnection(ConnectionParams{Driver: "stub", Store: store, Feed: feed})
	require.NoError(t, err)
	return conn
}

func itemIDs(snap models.ViewSnapshot) []string {
	ids := make([]string, 0, len(snap.Items))
	for _, item := range snap.Items {
		switch v := item.(type) {
		case models.Record:
			ids = append(ids, v.ID())
		case models.QueueItem:
			ids = append(ids, v.ID)
		}
	}
	return ids
}

func TestViewSessionManualReplyEndToEnd(t *testing.T) {
	conn, store, hub := newMemoryConnection(t, manualReplyRows()...)
	def := manualReplyQueue(t)
	session := NewViewSession(ViewParams{Queue: def.Name, Filter: def.Filter, EmptyMessage: def.EmptyMessage})
	defer session.Close()

	require.NoError(t, session.Attach(context.Background(), conn))
	snap := session.Snapshot()
	assert.Equal(t, models.ViewReady, snap.Status)
	assert.True(t, snap.Subscribed)
	assert.Equal(t, []string{"c", "b", "a"}, itemIDs(snap))
	assert.Equal(t, 1, hub.SubscriberCount("inbox"))

	_, err := store.Update(context.Background(), "b", models.RecordChanges{Set: map[string]interface{}{"replied": true}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(session.Snapshot().Items) == 2
	}, time.Second, 5*time.Millisecond)
	snap = session.Snapshot()
	assert.Equal(t, models.ViewReady, snap.Status)
	assert.Equal(t, []string{"c", "a"}, itemIDs(snap))
}

func TestViewSessionEmptyStoreShowsEmptyMessage(t *testing.T) {
	conn, _, _ := newMemoryConnection(t)
	session := NewViewSession(ViewParams{
		Filter:       models.EqualitySet(models.EqualityPair{Column: "permission", Value: "Waiting"}),
		EmptyMessage: "Nothing to moderate right now.",
	})
	defer session.Close()

	require.NoError(t, session.Attach(context.Background(), conn))
	snap := session.Snapshot()
	assert.Equal(t, models.ViewEmpty, snap.Status)
	assert.Empty(t, snap.Items)
	assert.Equal(t, "Nothing to moderate right now.", snap.EmptyMessage)
}

func TestViewSessionWithoutConnectionStaysDisconnected(t *testing.T) {
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer session.Close()

	require.NoError(t, session.Attach(context.Background(), nil))
	snap := session.Snapshot()
	assert.Equal(t, models.ViewDisconnected, snap.Status)
	assert.False(t, snap.Subscribed)
	assert.Empty(t, snap.EmptyMessage)

	err := session.Refresh(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrConnectionMissing)
	assert.Equal(t, models.ViewDisconnected, session.Snapshot().Status)
}

func TestViewSessionDetachReleasesSubscription(t *testing.T) {
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	feed := &stubFeed{}
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer session.Close()

	require.NoError(t, session.Attach(context.Background(), newStubConnection(t, store, feed)))
	require.NoError(t, session.Detach())

	snap := session.Snapshot()
	assert.Equal(t, models.ViewDisconnected, snap.Status)
	assert.Empty(t, snap.Items)
	assert.Equal(t, 1, feed.subscribes)
	assert.Equal(t, 1, feed.closed)
}

func TestViewSessionRefreshIsIdempotent(t *testing.T) {
	conn, _, _ := newMemoryConnection(t, manualReplyRows()...)
	def := manualReplyQueue(t)
	fixed := func() time.Time { return testBase }
	session := NewViewSession(ViewParams{Filter: def.Filter, Now: fixed})
	defer session.Close()
	require.NoError(t, session.Attach(context.Background(), conn))

	require.NoError(t, session.Refresh(context.Background()))
	first := session.Snapshot()
	require.NoError(t, session.Refresh(context.Background()))
	second := session.Snapshot()
	assert.Equal(t, first, second)
}

func TestViewSessionQueryErrorKeepsLastGoodRecords(t *testing.T) {
	store := &stubStore{table: "inbox", records: manualReplyRows()[:1]}
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer session.Close()
	require.NoError(t, session.Attach(context.Background(), newStubConnection(t, store, &stubFeed{})))
	require.Equal(t, models.ViewReady, session.Snapshot().Status)

	store.setErr(errors.New("permission denied for table inbox"))
	err := session.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrQuery)

	snap := session.Snapshot()
	assert.Equal(t, models.ViewReady, snap.Status)
	assert.Equal(t, []string{"a"}, itemIDs(snap))
	require.NotNil(t, snap.Notice)
	assert.Equal(t, models.NoticeQueryError, snap.Notice.Kind)
	assert.Contains(t, snap.Notice.Message, "permission denied")

	store.setErr(nil)
	require.NoError(t, session.Refresh(context.Background()))
	assert.Nil(t, session.Snapshot().Notice)
}

func TestViewSessionSubscriptionFailureStillFetches(t *testing.T) {
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	feed := &stubFeed{err: errors.New("channel limit reached")}
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer session.Close()

	require.NoError(t, session.Attach(context.Background(), newStubConnection(t, store, feed)))
	snap := session.Snapshot()
	assert.Equal(t, models.ViewReady, snap.Status)
	assert.False(t, snap.Subscribed)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, models.NoticeSubscriptionError, snap.Notice.Kind)

	require.NoError(t, session.Refresh(context.Background()))
	assert.Equal(t, 2, store.selectCount())

	session.DismissNotice()
	assert.Nil(t, session.Snapshot().Notice)
}

func TestViewSessionCloseStopsCallbacks(t *testing.T) {
	hub := changefeed.NewHub(changefeed.HubConfig{})
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	require.NoError(t, session.Attach(context.Background(), newStubConnection(t, store, NewHubFeed(hub))))
	require.Equal(t, 1, store.selectCount())

	require.NoError(t, session.Close())
	assert.Equal(t, 0, hub.SubscriberCount("inbox"))
	assert.True(t, session.Closed())

	require.NoError(t, hub.Publish(models.ChangeEvent{Table: "inbox", Kind: models.ChangeInsert}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, store.selectCount())
	assert.ErrorIs(t, session.Refresh(context.Background()), appErrors.ErrViewClosed)
}

func TestViewSessionIgnoresOtherTables(t *testing.T) {
	hub := changefeed.NewHub(changefeed.HubConfig{})
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer session.Close()
	require.NoError(t, session.Attach(context.Background(), newStubConnection(t, store, NewHubFeed(hub))))

	require.NoError(t, hub.Publish(models.ChangeEvent{Table: "archive", Kind: models.ChangeInsert}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, store.selectCount())
}

func TestViewSessionDebounceCoalescesBursts(t *testing.T) {
	hub := changefeed.NewHub(changefeed.HubConfig{})
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	session := NewViewSession(ViewParams{Filter: models.EqualitySet(), Debounce: 30 * time.Millisecond})
	defer session.Close()
	require.NoError(t, session.Attach(context.Background(), newStubConnection(t, store, NewHubFeed(hub))))

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(models.ChangeEvent{Table: "inbox", Kind: models.ChangeUpdate}))
	}
	require.Eventually(t, func() bool { return store.selectCount() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, store.selectCount())
}

func TestViewSessionWatchStreamsSnapshots(t *testing.T) {
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})

	updates, stop := session.Watch()
	defer stop()
	first := <-updates
	assert.Equal(t, models.ViewDisconnected, first.Status)

	require.NoError(t, session.Attach(context.Background(), newStubConnection(t, store, &stubFeed{})))
	require.Eventually(t, func() bool {
		select {
		case snap := <-updates:
			return snap.Status == models.ViewReady && len(snap.Items) == 5
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, session.Close())
	_, open := <-updates
	assert.False(t, open)
}

func TestViewSessionWindowIsConjoined(t *testing.T) {
	rows := manualReplyRows()
	conn, _, _ := newMemoryConnection(t, rows...)
	def := manualReplyQueue(t)
	start := testBase.Add(90 * time.Minute)
	session := NewViewSession(ViewParams{
		Filter: def.Filter,
		Window: models.Rolling(2 * time.Hour),
		Now:    func() time.Time { return start.Add(2 * time.Hour) },
	})
	defer session.Close()

	require.NoError(t, session.Attach(context.Background(), conn))
	assert.Equal(t, []string{"c", "b"}, itemIDs(session.Snapshot()))
}

type cancelingFeed struct {
	cancel context.CancelFunc
}

func (f cancelingFeed) Subscribe(context.Context, string, changefeed.Handler) (FeedSubscription, error) {
	f.cancel()
	return stubSubscription{feed: &stubFeed{}}, nil
}

func TestViewSessionAttachFetchesAfterCallerGivesUp(t *testing.T) {
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer session.Close()

	require.NoError(t, session.Attach(ctx, newStubConnection(t, store, cancelingFeed{cancel: cancel})))

	snap := session.Snapshot()
	assert.Equal(t, models.ViewReady, snap.Status)
	assert.Len(t, snap.Items, 5)
	assert.Equal(t, 1, store.selectCount())

	assert.ErrorIs(t, session.Refresh(ctx), context.Canceled)
	assert.Equal(t, 1, store.selectCount())
}

func TestViewSessionReportsLostChangeSource(t *testing.T) {
	hub := changefeed.NewHub(changefeed.HubConfig{})
	store := &stubStore{table: "inbox", records: manualReplyRows()}
	feed := NewSourceFeed(NewHubFeed(hub))
	conn := newStubConnection(t, store, feed)
	session := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer session.Close()

	require.NoError(t, session.Attach(context.Background(), conn))
	require.True(t, session.Snapshot().Subscribed)
	require.Equal(t, 1, hub.SubscriberCount("inbox"))

	feed.Fail(errors.New("listen inbox_changes: connection reset"))

	snap := session.Snapshot()
	assert.False(t, snap.Subscribed)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, models.NoticeSubscriptionError, snap.Notice.Kind)
	assert.Contains(t, snap.Notice.Message, "connection reset")
	assert.Equal(t, models.ViewReady, snap.Status)
	assert.Equal(t, 0, hub.SubscriberCount("inbox"))

	require.NoError(t, session.Refresh(context.Background()))
	assert.Equal(t, 2, store.selectCount())

	other := NewViewSession(ViewParams{Filter: models.EqualitySet()})
	defer other.Close()
	require.NoError(t, other.Attach(context.Background(), conn))
	assert.False(t, other.Snapshot().Subscribed)
	require.NotNil(t, other.Snapshot().Notice)
	assert.Equal(t, models.NoticeSubscriptionError, other.Snapshot().Notice.Kind)
}
