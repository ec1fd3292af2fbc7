package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/repository"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

type staticConnections struct {
	conn *Connection
}

func (s staticConnections) Require() (*Connection, error) {
	if s.conn == nil {
		return nil, appErrors.ErrConnectionMissing
	}
	return s.conn, nil
}

type recordingRefresher struct {
	mu     sync.Mutex
	tables []string
}

func (r *recordingRefresher) RefreshTable(_ context.Context, table string) error {
	r.mu.Lock()
	r.tables = append(r.tables, table)
	r.mu.Unlock()
	return nil
}

type recordingAnnouncer struct {
	events []models.ChangeEvent
}

func (a *recordingAnnouncer) Announce(_ context.Context, evt models.ChangeEvent) error {
	a.events = append(a.events, evt)
	return nil
}

func newRecordServiceForTest(t *testing.T, rows ...models.Record) (*RecordService, *repository.MemoryRecordStore, *recordingRefresher, *recordingAnnouncer) {
	t.Helper()
	store := repository.NewMemoryRecordStore("inbox", nil)
	store.Seed(rows...)
	announcer := &recordingAnnouncer{}
	conn, err := NewConnection(ConnectionParams{Driver: "memory", Store: store, Announcer: announcer})
	require.NoError(t, err)
	refresher := &recordingRefresher{}
	svc := NewRecordService(RecordServiceParams{Connections: staticConnections{conn: conn}, Views: refresher})
	return svc, store, refresher, announcer
}

func TestRecordServiceDecide(t *testing.T) {
	svc, _, refresher, announcer := newRecordServiceForTest(t, models.Record{"id": "r1", "permission": "Waiting", "edited": int64(1)})
	ctx := context.Background()

	record, err := svc.Decide(ctx, "r1", DecisionRequest{Permission: "Objection", Feedback: " too formal "})
	require.NoError(t, err)
	assert.Equal(t, "Objection", record.String(models.ColumnPermission))
	assert.Equal(t, "too formal", record.String(models.ColumnFeedback))
	assert.Equal(t, int64(2), record.Int(models.ColumnEdited))
	assert.Equal(t, []string{"inbox"}, refresher.tables)
	require.Len(t, announcer.events, 1)
	assert.Equal(t, models.ChangeUpdate, announcer.events[0].Kind)

	record, err = svc.Decide(ctx, "r1", DecisionRequest{Permission: "Approval"})
	require.NoError(t, err)
	assert.Equal(t, "Approval", record.String(models.ColumnPermission))
	assert.Equal(t, int64(2), record.Int(models.ColumnEdited))

	record, err = svc.Decide(ctx, "r1", DecisionRequest{Permission: "Manual Handle", Feedback: "needs a human"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.Int(models.ColumnEdited))
	assert.Equal(t, "needs a human", record.String(models.ColumnFeedback))
}

func TestRecordServiceDecideValidation(t *testing.T) {
	svc, _, refresher, _ := newRecordServiceForTest(t, models.Record{"id": "r1"})
	ctx := context.Background()

	_, err := svc.Decide(ctx, "r1", DecisionRequest{Permission: "Objection"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Decide(ctx, "r1", DecisionRequest{Permission: "Cancel"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Decide(ctx, "r1", DecisionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Decide(ctx, "", DecisionRequest{Permission: "Approval"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, refresher.tables)
}

func TestRecordServiceReplies(t *testing.T) {
	svc, store, _, _ := newRecordServiceForTest(t, models.Record{"id": "r1"})
	ctx := context.Background()

	_, err := svc.Reply(ctx, "r1", ReplyRequest{Reply: "Thanks, booked.", Name: "Dana"})
	require.NoError(t, err)
	_, err = svc.RespondImportant(ctx, "r1", ResponseRequest{Reply: "Escalated to sales"})
	require.NoError(t, err)
	_, err = svc.RespondEscalation(ctx, "r1", ResponseRequest{Reply: "Refund issued"})
	require.NoError(t, err)

	row, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Thanks, booked.", row.String(models.ColumnHumanReply))
	assert.Equal(t, "Dana", row.String(models.ColumnHumanName))
	assert.True(t, row.Bool(models.ColumnReplied))
	assert.Equal(t, "Escalated to sales", row.String(models.ColumnImportantReply))
	assert.True(t, row.Bool(models.ColumnImportantReplied))
	assert.Equal(t, "Refund issued", row.String(models.ColumnEscalatedReply))
	assert.True(t, row.Bool(models.ColumnEscalatedReplied))

	_, err = svc.Reply(ctx, "r1", ReplyRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.RespondImportant(ctx, "r1", ResponseRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRecordServiceRemoveRestoreCancelDelete(t *testing.T) {
	svc, store, refresher, announcer := newRecordServiceForTest(t, models.Record{"id": "r1", "permission": "Waiting", "removed": false})
	ctx := context.Background()

	record, err := svc.Cancel(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Cancel", record.String(models.ColumnPermission))

	record, err = svc.Remove(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, record.Bool(models.ColumnRemoved))

	record, err = svc.Restore(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, record.Bool(models.ColumnRemoved))
	assert.Equal(t, "Waiting", record.String(models.ColumnPermission))

	require.NoError(t, svc.Delete(ctx, "r1"))
	_, err = store.FindByID(ctx, "r1")
	assert.Error(t, err)
	assert.Len(t, refresher.tables, 4)
	require.Len(t, announcer.events, 4)
	assert.Equal(t, models.ChangeDelete, announcer.events[3].Kind)
	assert.Equal(t, "r1", announcer.events[3].OldRecord.ID())
}

func TestRecordServiceMissingRow(t *testing.T) {
	svc, _, refresher, _ := newRecordServiceForTest(t)
	_, err := svc.Remove(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "ghost"), appErrors.ErrNotFound)
	assert.Empty(t, refresher.tables)
}

func TestRecordServiceWithoutConnection(t *testing.T) {
	svc := NewRecordService(RecordServiceParams{Connections: staticConnections{}})
	_, err := svc.Cancel(context.Background(), "r1")
	assert.ErrorIs(t, err, appErrors.ErrConnectionMissing)
}

func TestRecordServiceRefreshesLiveViews(t *testing.T) {
	conn, _, _ := newMemoryConnection(t, manualReplyRows()...)
	manager := newTestViewManager(t)
	defer manager.CloseAll()
	require.NoError(t, manager.SetConnection(context.Background(), conn))
	session, err := manager.Open(context.Background(), OpenViewRequest{Queue: "manual-reply"})
	require.NoError(t, err)
	require.Len(t, session.Snapshot().Items, 3)

	svc := NewRecordService(RecordServiceParams{Connections: staticConnections{conn: conn}, Views: manager})
	_, err = svc.Reply(context.Background(), "b", ReplyRequest{Reply: "Done"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := session.Snapshot()
		return snap.Status == models.ViewReady && len(snap.Items) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c", "a"}, itemIDs(session.Snapshot()))
}
