package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

func TestSourceFeedFailNotifiesLiveSubscribersOnce(t *testing.T) {
	feed := NewSourceFeed(&stubFeed{})
	var first, second FeedSubscriber
	var lost []string

	require.NoError(t, first.Open(context.Background(), feed, "inbox", func(models.ChangeEvent) {}, func(err error) {
		lost = append(lost, "first:"+err.Error())
	}))
	require.NoError(t, second.Open(context.Background(), feed, "inbox", func(models.ChangeEvent) {}, func(err error) {
		lost = append(lost, "second:"+err.Error())
	}))
	require.NoError(t, second.Close())

	feed.Fail(errors.New("gone"))
	feed.Fail(errors.New("again"))

	assert.Equal(t, []string{"first:gone"}, lost)
	assert.EqualError(t, feed.Err(), "gone")
}

func TestFeedSubscriberRefusesFailedSource(t *testing.T) {
	inner := &stubFeed{}
	feed := NewSourceFeed(inner)
	feed.Fail(errors.New("subscribe inbox_changes: i/o timeout"))

	var sub FeedSubscriber
	err := sub.Open(context.Background(), feed, "inbox", func(models.ChangeEvent) {}, nil)
	assert.ErrorIs(t, err, appErrors.ErrSubscription)
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.False(t, sub.Active())
	assert.Equal(t, 0, inner.subscribes)
}
