package service

import (
	"context"
	"sync"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

// FeedSubscriber owns at most one change-feed subscription.
type FeedSubscriber struct {
	mu       sync.Mutex
	sub      FeedSubscription
	stopLoss func()
}

// Open subscribes onEvent to every change on table, closing any previous
// subscription first. When the feed can stop, onLost (optional) runs once
// if it does. Failures are returned as SUBSCRIPTION_ERROR.
func (s *FeedSubscriber) Open(ctx context.Context, feed ChangeFeed, table string, onEvent func(models.ChangeEvent), onLost func(error)) error {
	if err := s.Close(); err != nil {
		return err
	}
	if feed == nil {
		return appErrors.Clone(appErrors.ErrSubscription, "live updates are not available for this connection")
	}
	sub, err := feed.Subscribe(ctx, table, onEvent)
	if err != nil {
		return subscriptionError(err)
	}
	var stop func()
	if notifier, ok := feed.(lossNotifier); ok {
		if onLost == nil {
			onLost = func(error) {}
		}
		stop, err = notifier.NotifyLost(onLost)
		if err != nil {
			_ = sub.Close()
			return subscriptionError(err)
		}
	}
	s.mu.Lock()
	s.sub = sub
	s.stopLoss = stop
	s.mu.Unlock()
	return nil
}

// Close releases the current subscription. No callback fires after Close
// returns.
func (s *FeedSubscriber) Close() error {
	s.mu.Lock()
	sub, stop := s.sub, s.stopLoss
	s.sub, s.stopLoss = nil, nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	if sub == nil {
		return nil
	}
	return sub.Close()
}

// Active reports whether a subscription is held.
func (s *FeedSubscriber) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

func subscriptionError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrSubscription.Code, appErrors.ErrSubscription.Status, err.Error())
}
