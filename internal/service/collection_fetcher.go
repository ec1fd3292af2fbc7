package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

type recordSelector interface {
	Select(ctx context.Context, q query.Query) ([]models.Record, error)
}

type fetchObserver interface {
	ObserveFetch(outcome string, duration time.Duration)
}

// Fetch outcomes reported to the observer.
const (
	FetchApplied    = "applied"
	FetchSuperseded = "superseded"
	FetchFailed     = "failed"
)

// FetchResult describes one completed fetch.
type FetchResult struct {
	Records    []models.Record
	Generation uint64
	// Superseded is set when a newer fetch was issued before this one
	// completed; its outcome was discarded.
	Superseded bool
}

// ApplyFunc receives the outcome of the latest fetch. It runs while the
// fetcher is locked, so no newer result can be applied concurrently.
// retained holds the last good records.
type ApplyFunc func(records []models.Record, err error, retained []models.Record)

// CollectionFetcher runs compiled queries and keeps the last good result.
// Only the most recently issued fetch may apply its outcome.
type CollectionFetcher struct {
	mu       sync.Mutex
	issued   uint64
	records  []models.Record
	observer fetchObserver
}

// NewCollectionFetcher constructs a fetcher. observer may be nil.
func NewCollectionFetcher(observer fetchObserver) *CollectionFetcher {
	return &CollectionFetcher{observer: observer}
}

// Fetch issues one read against store. Calls may overlap; a call whose
// generation is no longer the latest when its read completes returns a
// Superseded result and leaves state untouched, whether it succeeded or
// failed. Failures are returned as QUERY_ERROR and keep the prior records.
func (f *CollectionFetcher) Fetch(ctx context.Context, store recordSelector, q query.Query, apply ApplyFunc) (FetchResult, error) {
	f.mu.Lock()
	f.issued++
	gen := f.issued
	f.mu.Unlock()

	start := time.Now()
	records, err := store.Select(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.issued {
		f.observe(FetchSuperseded, start)
		return FetchResult{Generation: gen, Superseded: true}, nil
	}
	if err != nil {
		f.observe(FetchFailed, start)
		qerr := wrapQueryError(err)
		if apply != nil {
			apply(nil, qerr, f.records)
		}
		return FetchResult{Generation: gen}, qerr
	}
	if records == nil {
		records = []models.Record{}
	}
	f.records = records
	f.observe(FetchApplied, start)
	if apply != nil {
		apply(records, nil, records)
	}
	return FetchResult{Records: records, Generation: gen}, nil
}

// Invalidate turns every in-flight fetch into a superseded one.
func (f *CollectionFetcher) Invalidate() {
	f.mu.Lock()
	f.issued++
	f.mu.Unlock()
}

// Reset invalidates in-flight fetches and forgets the retained records.
func (f *CollectionFetcher) Reset() {
	f.mu.Lock()
	f.issued++
	f.records = nil
	f.mu.Unlock()
}

// Records returns the last good records.
func (f *CollectionFetcher) Records() []models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Record(nil), f.records...)
}

func (f *CollectionFetcher) observe(outcome string, start time.Time) {
	if f.observer != nil {
		f.observer.ObserveFetch(outcome, time.Since(start))
	}
}

func wrapQueryError(err error) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrQuery.Code, appErrors.ErrQuery.Status, err.Error())
}
