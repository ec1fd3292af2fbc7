package service

import (
	"context"
	"sync"

	"github.com/noah-isme/inbox-manager-api/internal/changefeed"
)

type lossNotifier interface {
	// NotifyLost registers fn to run once when the feed stops. It fails
	// with the stop cause when the feed is already down.
	NotifyLost(fn func(error)) (stop func(), err error)
}

// SourceFeed is a ChangeFeed fed by an upstream source that can stop, such
// as a LISTEN connection or a Redis subscription. After Fail it refuses new
// subscriptions and tells live subscribers their updates are gone.
type SourceFeed struct {
	feed ChangeFeed

	mu     sync.Mutex
	err    error
	lost   map[int]func(error)
	nextID int
}

// NewSourceFeed wraps feed.
func NewSourceFeed(feed ChangeFeed) *SourceFeed {
	return &SourceFeed{feed: feed, lost: make(map[int]func(error))}
}

// Subscribe delegates to the wrapped feed while the source is up.
func (f *SourceFeed) Subscribe(ctx context.Context, table string, handler changefeed.Handler) (FeedSubscription, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f.feed.Subscribe(ctx, table, handler)
}

// NotifyLost implements lossNotifier.
func (f *SourceFeed) NotifyLost(fn func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := f.nextID
	f.nextID++
	f.lost[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.lost, id)
		f.mu.Unlock()
	}, nil
}

// Fail marks the source stopped. Only the first call has an effect.
func (f *SourceFeed) Fail(err error) {
	f.mu.Lock()
	if f.err != nil || err == nil {
		f.mu.Unlock()
		return
	}
	f.err = err
	callbacks := make([]func(error), 0, len(f.lost))
	for id, fn := range f.lost {
		callbacks = append(callbacks, fn)
		delete(f.lost, id)
	}
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}

// Err returns why the source stopped, or nil while it runs.
func (f *SourceFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
