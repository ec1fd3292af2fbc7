package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
)

// ChangePublisher receives the change events a store emits for its writes.
type ChangePublisher interface {
	Publish(evt models.ChangeEvent) error
}

// MemoryRecordStore is an in-process table used for local development and
// tests. Every write emits a change event, standing in for the database
// trigger.
type MemoryRecordStore struct {
	mu    sync.RWMutex
	table string
	rows  map[string]models.Record
	feed  ChangePublisher
	now   func() time.Time
}

// NewMemoryRecordStore constructs an empty store. feed may be nil.
func NewMemoryRecordStore(table string, feed ChangePublisher) *MemoryRecordStore {
	return &MemoryRecordStore{
		table: table,
		rows:  make(map[string]models.Record),
		feed:  feed,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Table returns the table name.
func (s *MemoryRecordStore) Table() string {
	return s.table
}

// Seed loads rows without emitting events.
func (s *MemoryRecordStore) Seed(records ...models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		row := s.prepare(record)
		s.rows[row.ID()] = row
	}
}

// Insert adds a row, assigning id and created_at when absent.
func (s *MemoryRecordStore) Insert(_ context.Context, record models.Record) (models.Record, error) {
	s.mu.Lock()
	row := s.prepare(record)
	if _, exists := s.rows[row.ID()]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("insert %s: duplicate id %s", s.table, row.ID())
	}
	s.rows[row.ID()] = row
	out := row.Clone()
	s.mu.Unlock()

	s.emit(models.ChangeInsert, out, nil)
	return out, nil
}

// Select evaluates q against the stored rows.
func (s *MemoryRecordStore) Select(_ context.Context, q query.Query) ([]models.Record, error) {
	s.mu.RLock()
	all := make([]models.Record, 0, len(s.rows))
	for _, row := range s.rows {
		all = append(all, row)
	}
	s.mu.RUnlock()
	return query.Apply(q, all), nil
}

// FindByID returns a copy of one row.
func (s *MemoryRecordStore) FindByID(_ context.Context, id string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return row.Clone(), nil
}

// Update applies changes to one row.
func (s *MemoryRecordStore) Update(_ context.Context, id string, changes models.RecordChanges) (models.Record, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return nil, sql.ErrNoRows
	}
	old := row.Clone()
	next := row.Clone()
	for column, value := range changes.Set {
		next[column] = value
	}
	for _, column := range changes.Increment {
		next[column] = next.Int(column) + 1
	}
	s.rows[id] = next
	out := next.Clone()
	s.mu.Unlock()

	s.emit(models.ChangeUpdate, out, old)
	return out, nil
}

// Delete removes one row.
func (s *MemoryRecordStore) Delete(_ context.Context, id string) (models.Record, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return nil, sql.ErrNoRows
	}
	delete(s.rows, id)
	s.mu.Unlock()

	s.emit(models.ChangeDelete, nil, row)
	return row, nil
}

// Count returns the number of rows matching where.
func (s *MemoryRecordStore) Count(_ context.Context, where models.Predicate) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, row := range s.rows {
		if query.Matches(where, row) {
			total++
		}
	}
	return total, nil
}

// Ping always succeeds.
func (s *MemoryRecordStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryRecordStore) prepare(record models.Record) models.Record {
	row := record.Clone()
	if row.ID() == "" {
		row[models.ColumnID] = uuid.NewString()
	} else {
		row[models.ColumnID] = row.ID()
	}
	if _, ok := models.AsTime(row[models.ColumnCreatedAt]); !ok {
		row[models.ColumnCreatedAt] = s.now()
	}
	return row
}

func (s *MemoryRecordStore) emit(kind models.ChangeKind, record, old models.Record) {
	if s.feed == nil {
		return
	}
	_ = s.feed.Publish(models.ChangeEvent{Table: s.table, Kind: kind, Record: record, OldRecord: old})
}
