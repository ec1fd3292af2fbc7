package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/inbox-manager-api/internal/changefeed"
	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
)

// RecordStore is the query and single-row mutation API of the moderation table.
type RecordStore interface {
	Table() string
	Select(ctx context.Context, q query.Query) ([]models.Record, error)
	FindByID(ctx context.Context, id string) (models.Record, error)
	Update(ctx context.Context, id string, changes models.RecordChanges) (models.Record, error)
	Delete(ctx context.Context, id string) (models.Record, error)
	Count(ctx context.Context, where models.Predicate) (int, error)
	Ping(ctx context.Context) error
}

// FeedSubscription is a live change-feed registration.
type FeedSubscription interface {
	Close() error
}

// ChangeFeed delivers every insert, update and delete on a table.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table string, handler changefeed.Handler) (FeedSubscription, error)
}

// ChangeAnnouncer broadcasts writes performed by this process to other
// instances.
type ChangeAnnouncer interface {
	Announce(ctx context.Context, evt models.ChangeEvent) error
}

type hubFeed struct {
	hub *changefeed.Hub
}

// NewHubFeed adapts a changefeed.Hub to the ChangeFeed interface.
func NewHubFeed(hub *changefeed.Hub) ChangeFeed {
	return hubFeed{hub: hub}
}

func (f hubFeed) Subscribe(ctx context.Context, table string, handler changefeed.Handler) (FeedSubscription, error) {
	sub, err := f.hub.Subscribe(ctx, table, handler)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ConnectionParams groups the parts of a Connection.
type ConnectionParams struct {
	Driver    string
	Store     RecordStore
	Feed      ChangeFeed
	Announcer ChangeAnnouncer
	Close     func() error
}

// Connection is an explicit handle on a configured store. Views hold a
// *Connection; nil means no store is configured.
type Connection struct {
	id        string
	driver    string
	store     RecordStore
	feed      ChangeFeed
	announcer ChangeAnnouncer
	openedAt  time.Time

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

// NewConnection validates params and builds a handle.
func NewConnection(params ConnectionParams) (*Connection, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("connection requires a store")
	}
	if params.Store.Table() == "" {
		return nil, fmt.Errorf("connection requires a table")
	}
	return &Connection{
		id:        uuid.NewString(),
		driver:    params.Driver,
		store:     params.Store,
		feed:      params.Feed,
		announcer: params.Announcer,
		openedAt:  time.Now().UTC(),
		closeFn:   params.Close,
	}, nil
}

// ID identifies this handle.
func (c *Connection) ID() string { return c.id }

// Driver names the store implementation.
func (c *Connection) Driver() string { return c.driver }

// Table returns the table the views read.
func (c *Connection) Table() string { return c.store.Table() }

// Store returns the record store.
func (c *Connection) Store() RecordStore { return c.store }

// Feed returns the change feed, or nil when live updates are unavailable.
func (c *Connection) Feed() ChangeFeed { return c.feed }

// Announcer returns the cross-instance announcer, if any.
func (c *Connection) Announcer() ChangeAnnouncer { return c.announcer }

// OpenedAt reports when the handle was created.
func (c *Connection) OpenedAt() time.Time { return c.openedAt }

// Close releases the underlying resources once.
func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.closeFn != nil {
			c.closeErr = c.closeFn()
		}
	})
	return c.closeErr
}
