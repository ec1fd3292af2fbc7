package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// ParseExpression parses the PostgREST logical filter grammar used by the
// pipeline's dashboards, e.g.
//
//	and(permission.eq.Waiting,removed.eq.false),and(permission.eq.Objection,removed.eq.false)
//
// A top-level list is a disjunction. Supported operators are eq, neq, is,
// gte and lte, each optionally prefixed by "not.".
func ParseExpression(raw string) (models.Predicate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Predicate{}, fmt.Errorf("empty expression")
	}
	items, err := splitTopLevel(raw)
	if err != nil {
		return models.Predicate{}, err
	}
	terms := make([]models.Predicate, 0, len(items))
	for _, item := range items {
		term, err := parseItem(item)
		if err != nil {
			return models.Predicate{}, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return models.Or(terms...), nil
}

func parseItem(item string) (models.Predicate, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return models.Predicate{}, fmt.Errorf("empty condition")
	}
	negate := false
	if strings.HasPrefix(item, "not.") {
		negate = true
		item = strings.TrimPrefix(item, "not.")
	}
	for _, op := range []string{"and", "or"} {
		if strings.HasPrefix(item, op+"(") {
			if !strings.HasSuffix(item, ")") {
				return models.Predicate{}, fmt.Errorf("unbalanced group %q", item)
			}
			inner := item[len(op)+1 : len(item)-1]
			children, err := splitTopLevel(inner)
			if err != nil {
				return models.Predicate{}, err
			}
			terms := make([]models.Predicate, 0, len(children))
			for _, child := range children {
				term, err := parseItem(child)
				if err != nil {
					return models.Predicate{}, err
				}
				terms = append(terms, term)
			}
			group := models.And(terms...)
			if op == "or" {
				group = models.Or(terms...)
			}
			return maybeNot(group, negate), nil
		}
	}
	return parseLeaf(item, negate)
}

func parseLeaf(item string, negate bool) (models.Predicate, error) {
	column, rest, ok := strings.Cut(item, ".")
	if !ok || column == "" {
		return models.Predicate{}, fmt.Errorf("condition %q must look like column.op.value", item)
	}
	if strings.HasPrefix(rest, "not.") {
		negate = !negate
		rest = strings.TrimPrefix(rest, "not.")
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return models.Predicate{}, fmt.Errorf("condition %q is missing a value", item)
	}
	value = unquote(value)

	var leaf models.Predicate
	switch op {
	case "eq":
		leaf = models.Eq(column, coerce(value))
	case "neq":
		leaf = models.Not(models.Eq(column, coerce(value)))
	case "gte":
		leaf = models.Gte(column, coerce(value))
	case "lte":
		leaf = models.Lte(column, coerce(value))
	case "is":
		switch strings.ToLower(value) {
		case "null":
			leaf = models.IsNull(column)
		case "true":
			leaf = models.Eq(column, true)
		case "false":
			leaf = models.Eq(column, false)
		default:
			return models.Predicate{}, fmt.Errorf("is only accepts null, true or false, got %q", value)
		}
	default:
		return models.Predicate{}, fmt.Errorf("unsupported operator %q in %q", op, item)
	}
	return maybeNot(leaf, negate), nil
}

func maybeNot(p models.Predicate, negate bool) models.Predicate {
	if negate {
		return models.Not(p)
	}
	return p
}

// splitTopLevel splits on commas that are outside parentheses and quotes.
func splitTopLevel(raw string) ([]string, error) {
	var (
		parts   []string
		depth   int
		quoted  bool
		escaped bool
		start   int
	)
	for i, r := range raw {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unexpected ')' at offset %d", i)
			}
		case r == ',' && depth == 0:
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", raw)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", raw)
	}
	return append(parts, raw[start:]), nil
}

func unquote(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		inner := value[1 : len(value)-1]
		return strings.ReplaceAll(inner, `\"`, `"`)
	}
	return value
}

func coerce(value string) interface{} {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	// Only canonical integers become numbers; "001" stays text so SQL and
	// in-memory evaluation agree on text columns.
	if n, err := strconv.ParseInt(value, 10, 64); err == nil && strconv.FormatInt(n, 10) == value {
		return n
	}
	return value
}
