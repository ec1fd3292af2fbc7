package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// Matches evaluates a predicate against a record with SQL semantics: any
// comparison against NULL is unknown, and unknown never matches.
func Matches(p models.Predicate, record models.Record) bool {
	value, known := eval(p, record)
	return known && value
}

// Apply filters and orders records in memory the way the SQL renderer would.
func Apply(q Query, records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, record := range records {
		if Matches(q.Where, record) {
			out = append(out, project(record, q.Columns))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			cmp, ok := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if !ok {
				return false
			}
			if q.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	return out
}

func project(record models.Record, columns []string) models.Record {
	if len(columns) == 0 {
		return record.Clone()
	}
	out := make(models.Record, len(columns))
	for _, column := range columns {
		if v, ok := record[column]; ok {
			out[column] = v
		}
	}
	return out
}

func eval(p models.Predicate, record models.Record) (value bool, known bool) {
	switch p.Kind {
	case models.PredicateIsNull:
		return record[p.Column] == nil, true
	case models.PredicateEq:
		cmp, ok := compare(record[p.Column], p.Value)
		return ok && cmp == 0, ok
	case models.PredicateGte:
		cmp, ok := compare(record[p.Column], p.Value)
		return ok && cmp >= 0, ok
	case models.PredicateLte:
		cmp, ok := compare(record[p.Column], p.Value)
		return ok && cmp <= 0, ok
	case models.PredicateNot:
		if len(p.Children) != 1 {
			return false, false
		}
		v, k := eval(p.Children[0], record)
		return !v, k
	case models.PredicateAnd:
		unknown := false
		for _, child := range p.Children {
			v, k := eval(child, record)
			if k && !v {
				return false, true
			}
			if !k {
				unknown = true
			}
		}
		return !unknown, !unknown
	case models.PredicateOr:
		unknown := false
		for _, child := range p.Children {
			v, k := eval(child, record)
			if k && v {
				return true, true
			}
			if !k {
				unknown = true
			}
		}
		return false, !unknown
	default:
		return false, false
	}
}

// compare orders two scalar values. ok is false when either side is NULL or
// the values are not comparable.
func compare(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if ta, isTime := models.AsTime(a); isTime {
		if tb, ok := models.AsTime(b); ok {
			return compareTime(ta, tb), true
		}
	}
	if ba, ok := a.(bool); ok {
		bb, ok := asBool(b)
		if !ok {
			return 0, false
		}
		return compareBool(ba, bb), true
	}
	if bb, ok := b.(bool); ok {
		ba, ok := asBool(a)
		if !ok {
			return 0, false
		}
		return compareBool(ba, bb), true
	}
	sa, aText := a.(string)
	sb, bText := b.(string)
	if aText && bText {
		return strings.Compare(sa, sb), true
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	sa, sb = fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1, true
	case sa > sb:
		return 1, true
	default:
		return 0, true
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func asBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	default:
		return false, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
