package changefeed

import (
	"testing"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

type recordingPublisher struct {
	events []models.ChangeEvent
}

func (p *recordingPublisher) Publish(evt models.ChangeEvent) error {
	p.events = append(p.events, evt)
	return nil
}

func TestDecode(t *testing.T) {
	evt, err := Decode([]byte(`{"table":"inbox","type":"update","record":{"id":"7","permission":"Approval"},"old_record":{"id":"7","permission":"Waiting"}}`))
	require.NoError(t, err)
	assert.Equal(t, "inbox", evt.Table)
	assert.Equal(t, models.ChangeUpdate, evt.Kind)
	assert.Equal(t, "7", evt.Record.ID())
	assert.Equal(t, "Waiting", evt.OldRecord.String("permission"))

	_, err = Decode([]byte(`{"type":"INSERT"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"table":"inbox","type":"TRUNCATE"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeDecodeKeepsKind(t *testing.T) {
	raw, err := Encode(models.ChangeEvent{Table: "inbox", Kind: models.ChangeDelete, OldRecord: models.Record{"id": "1"}})
	require.NoError(t, err)
	evt, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeDelete, evt.Kind)
}

func TestPostgresSourceHandleNotification(t *testing.T) {
	target := &recordingPublisher{}
	src, err := NewPostgresSource(PostgresSourceConfig{DSN: "host=localhost", Channel: "inbox_changes", Logger: zap.NewNop()}, target)
	require.NoError(t, err)

	src.handleNotification(nil)
	src.handleNotification(&pq.Notification{Channel: "inbox_changes", Extra: `{"table":"inbox","type":"INSERT","record":{"id":"1"}}`})
	src.handleNotification(&pq.Notification{Channel: "inbox_changes", Extra: `garbage`})

	require.Len(t, target.events, 1)
	assert.Equal(t, models.ChangeInsert, target.events[0].Kind)
}

func TestPostgresSourceRequiresChannel(t *testing.T) {
	_, err := NewPostgresSource(PostgresSourceConfig{DSN: "host=localhost"}, &recordingPublisher{})
	assert.Error(t, err)
	_, err = NewPostgresSource(PostgresSourceConfig{Channel: "inbox_changes"}, &recordingPublisher{})
	assert.Error(t, err)
}

func TestRedisSourceHandleMessage(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	target := &recordingPublisher{}
	src, err := NewRedisSource(client, "inbox_changes", target, nil)
	require.NoError(t, err)

	src.handleMessage(`{"table":"inbox","type":"DELETE","old_record":{"id":"9"}}`)
	src.handleMessage(`{}`)

	require.Len(t, target.events, 1)
	assert.Equal(t, "9", target.events[0].OldRecord.ID())
}
