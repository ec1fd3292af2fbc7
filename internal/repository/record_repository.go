package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
)

// QueryObserver records database timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// RecordRepository reads and writes rows of the moderation table.
type RecordRepository struct {
	db       *sqlx.DB
	table    string
	observer QueryObserver
}

// NewRecordRepository constructs the repository for table.
func NewRecordRepository(db *sqlx.DB, table string, observer QueryObserver) *RecordRepository {
	return &RecordRepository{db: db, table: table, observer: observer}
}

// Table returns the backing table name.
func (r *RecordRepository) Table() string {
	return r.table
}

// Select executes a compiled view query.
func (r *RecordRepository) Select(ctx context.Context, q query.Query) ([]models.Record, error) {
	builder, err := query.ToSelect(r.table, q)
	if err != nil {
		return nil, err
	}
	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	defer r.observe("select", time.Now())
	rows, err := r.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", r.table, err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		records = append(records, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.table, err)
	}
	return records, nil
}

// FindByID loads a single row.
func (r *RecordRepository) FindByID(ctx context.Context, id string) (models.Record, error) {
	stmt, args, err := query.Builder().
		Select("*").
		From(pq.QuoteIdentifier(r.table)).
		Where(sq.Eq{pq.QuoteIdentifier(models.ColumnID): id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find: %w", err)
	}
	defer r.observe("find", time.Now())
	return r.queryRow(ctx, stmt, args)
}

// Update applies changes to the row identified by id and returns the
// updated row. Increments are evaluated by the database so concurrent
// writers never lose a count.
func (r *RecordRepository) Update(ctx context.Context, id string, changes models.RecordChanges) (models.Record, error) {
	if len(changes.Set) == 0 && len(changes.Increment) == 0 {
		return nil, fmt.Errorf("update %s: no changes", id)
	}
	set := make(map[string]interface{}, len(changes.Set))
	for column, value := range changes.Set {
		set[pq.QuoteIdentifier(column)] = value
	}
	builder := query.Builder().Update(pq.QuoteIdentifier(r.table)).SetMap(set)

	increments := append([]string(nil), changes.Increment...)
	sort.Strings(increments)
	for _, column := range increments {
		quoted := pq.QuoteIdentifier(column)
		builder = builder.Set(quoted, sq.Expr("COALESCE("+quoted+", 0) + 1"))
	}

	stmt, args, err := builder.
		Where(sq.Eq{pq.QuoteIdentifier(models.ColumnID): id}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	defer r.observe("update", time.Now())
	return r.queryRow(ctx, stmt, args)
}

// Delete removes the row permanently and returns its last state.
func (r *RecordRepository) Delete(ctx context.Context, id string) (models.Record, error) {
	stmt, args, err := query.Builder().
		Delete(pq.QuoteIdentifier(r.table)).
		Where(sq.Eq{pq.QuoteIdentifier(models.ColumnID): id}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}
	defer r.observe("delete", time.Now())
	return r.queryRow(ctx, stmt, args)
}

// Count returns the number of rows matching where.
func (r *RecordRepository) Count(ctx context.Context, where models.Predicate) (int, error) {
	cond, err := query.ToSqlizer(where)
	if err != nil {
		return 0, err
	}
	stmt, args, err := query.Builder().
		Select("COUNT(*)").
		From(pq.QuoteIdentifier(r.table)).
		Where(cond).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	defer r.observe("count", time.Now())
	var total int
	if err := r.db.GetContext(ctx, &total, stmt, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return total, nil
}

// Ping verifies connectivity.
func (r *RecordRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *RecordRepository) queryRow(ctx context.Context, stmt string, args []interface{}) (models.Record, error) {
	row := make(map[string]interface{})
	if err := r.db.QueryRowxContext(ctx, stmt, args...).MapScan(row); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", r.table, err)
	}
	return normalizeRow(row), nil
}

func (r *RecordRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery("records_"+label, time.Since(start))
	}
}

// normalizeRow converts driver byte slices into strings so rows serialise
// as readable JSON.
func normalizeRow(row map[string]interface{}) models.Record {
	out := make(models.Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out
}
