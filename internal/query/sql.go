package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// Builder returns a statement builder using Postgres placeholders.
func Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// ToSelect renders q as a SELECT against table. Identifiers are quoted so
// mixed-case pipeline columns such as "Escalated_replied" resolve.
func ToSelect(table string, q Query) (sq.SelectBuilder, error) {
	where, err := ToSqlizer(q.Where)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	columns := []string{"*"}
	if len(q.Columns) > 0 {
		columns = make([]string, len(q.Columns))
		for i, column := range q.Columns {
			columns[i] = pq.QuoteIdentifier(column)
		}
	}
	builder := Builder().Select(columns...).From(pq.QuoteIdentifier(table)).Where(where)
	if q.OrderBy != "" {
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		builder = builder.OrderBy(pq.QuoteIdentifier(q.OrderBy) + " " + direction)
	}
	return builder, nil
}

// ToSqlizer converts a predicate tree into a squirrel condition.
func ToSqlizer(p models.Predicate) (sq.Sqlizer, error) {
	switch p.Kind {
	case models.PredicateEq:
		if p.Value == nil {
			return nil, fmt.Errorf("eq on %s requires a value, use is_null", p.Column)
		}
		return sq.Eq{pq.QuoteIdentifier(p.Column): p.Value}, nil
	case models.PredicateIsNull:
		return sq.Eq{pq.QuoteIdentifier(p.Column): nil}, nil
	case models.PredicateGte:
		return sq.GtOrEq{pq.QuoteIdentifier(p.Column): p.Value}, nil
	case models.PredicateLte:
		return sq.LtOrEq{pq.QuoteIdentifier(p.Column): p.Value}, nil
	case models.PredicateAnd:
		conj := sq.And{}
		for _, child := range p.Children {
			part, err := ToSqlizer(child)
			if err != nil {
				return nil, err
			}
			conj = append(conj, part)
		}
		return conj, nil
	case models.PredicateOr:
		disj := sq.Or{}
		for _, child := range p.Children {
			part, err := ToSqlizer(child)
			if err != nil {
				return nil, err
			}
			disj = append(disj, part)
		}
		return disj, nil
	case models.PredicateNot:
		if len(p.Children) != 1 {
			return nil, fmt.Errorf("not requires exactly one operand, got %d", len(p.Children))
		}
		inner, err := ToSqlizer(p.Children[0])
		if err != nil {
			return nil, err
		}
		sql, args, err := inner.ToSql()
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT ("+sql+")", args...), nil
	default:
		return nil, fmt.Errorf("unsupported predicate kind %q", p.Kind)
	}
}
