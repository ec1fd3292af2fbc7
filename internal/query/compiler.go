// Package query compiles view filters into backend-neutral queries and
// renders them for the stores that execute them.
package query

import (
	"fmt"
	"time"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// Query is a compiled view query. Ordering is fixed to created_at DESC.
type Query struct {
	Where      models.Predicate
	OrderBy    string
	Descending bool
	Columns    []string
}

// WithColumns narrows the selected columns. Empty means every column.
func (q Query) WithColumns(columns ...string) Query {
	q.Columns = append([]string(nil), columns...)
	return q
}

// Compile turns a filter and an optional time window into a Query. The window
// is always conjoined with the filter. now anchors rolling windows.
func Compile(filter models.FilterDescriptor, window *models.TimeWindow, now time.Time) Query {
	parts := []models.Predicate{compileFilter(filter)}
	if window != nil {
		from, to := window.Bounds(now)
		parts = append(parts, models.Gte(models.ColumnCreatedAt, from))
		if !to.IsZero() {
			parts = append(parts, models.Lte(models.ColumnCreatedAt, to))
		}
	}
	where := parts[0]
	if len(parts) > 1 {
		where = models.And(parts...)
	}
	return Query{
		Where:      where,
		OrderBy:    models.ColumnCreatedAt,
		Descending: true,
	}
}

func compileFilter(filter models.FilterDescriptor) models.Predicate {
	switch filter.Kind {
	case models.FilterEqualitySet:
		terms := make([]models.Predicate, 0, len(filter.Pairs))
		for _, pair := range filter.Pairs {
			if pair.Value == nil {
				terms = append(terms, models.IsNull(pair.Column))
				continue
			}
			terms = append(terms, models.Eq(pair.Column, pair.Value))
		}
		return models.And(terms...)
	case models.FilterExpression:
		if filter.Expr == nil {
			return models.And()
		}
		return *filter.Expr
	default:
		panic(fmt.Sprintf("unknown filter kind %q", filter.Kind))
	}
}
