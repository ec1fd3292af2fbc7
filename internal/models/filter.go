package models

import (
	"encoding/json"
	"fmt"
)

// PredicateKind identifies a node of the predicate tree.
type PredicateKind string

const (
	PredicateEq     PredicateKind = "eq"
	PredicateIsNull PredicateKind = "is_null"
	PredicateGte    PredicateKind = "gte"
	PredicateLte    PredicateKind = "lte"
	PredicateAnd    PredicateKind = "and"
	PredicateOr     PredicateKind = "or"
	PredicateNot    PredicateKind = "not"
)

// Predicate is a boolean expression over record columns. Leaf kinds use
// Column/Value, logical kinds use Children.
type Predicate struct {
	Kind     PredicateKind `json:"kind" yaml:"kind"`
	Column   string        `json:"column,omitempty" yaml:"column,omitempty"`
	Value    interface{}   `json:"value,omitempty" yaml:"value,omitempty"`
	Children []Predicate   `json:"children,omitempty" yaml:"children,omitempty"`
}

// Eq matches rows whose column equals value.
func Eq(column string, value interface{}) Predicate {
	return Predicate{Kind: PredicateEq, Column: column, Value: value}
}

// IsNull matches rows whose column is NULL.
func IsNull(column string) Predicate {
	return Predicate{Kind: PredicateIsNull, Column: column}
}

// Gte matches rows whose column is greater than or equal to value.
func Gte(column string, value interface{}) Predicate {
	return Predicate{Kind: PredicateGte, Column: column, Value: value}
}

// Lte matches rows whose column is less than or equal to value.
func Lte(column string, value interface{}) Predicate {
	return Predicate{Kind: PredicateLte, Column: column, Value: value}
}

// And conjoins predicates. An empty And matches every row.
func And(children ...Predicate) Predicate {
	return Predicate{Kind: PredicateAnd, Children: children}
}

// Or disjoins predicates. An empty Or matches no row.
func Or(children ...Predicate) Predicate {
	return Predicate{Kind: PredicateOr, Children: children}
}

// Not negates a predicate.
func Not(child Predicate) Predicate {
	return Predicate{Kind: PredicateNot, Children: []Predicate{child}}
}

// String renders the predicate in a compact, human readable form.
func (p Predicate) String() string {
	switch p.Kind {
	case PredicateEq:
		return fmt.Sprintf("%s = %v", p.Column, p.Value)
	case PredicateIsNull:
		return fmt.Sprintf("%s IS NULL", p.Column)
	case PredicateGte:
		return fmt.Sprintf("%s >= %v", p.Column, p.Value)
	case PredicateLte:
		return fmt.Sprintf("%s <= %v", p.Column, p.Value)
	case PredicateNot:
		if len(p.Children) == 1 {
			return "NOT (" + p.Children[0].String() + ")"
		}
	case PredicateAnd, PredicateOr:
		op := " AND "
		if p.Kind == PredicateOr {
			op = " OR "
		}
		out := "("
		for i, child := range p.Children {
			if i > 0 {
				out += op
			}
			out += child.String()
		}
		return out + ")"
	}
	return string(p.Kind)
}

// FilterKind tags the active variant of a FilterDescriptor.
type FilterKind string

const (
	FilterEqualitySet FilterKind = "equality_set"
	FilterExpression  FilterKind = "expression"
)

// EqualityPair expects Column to equal Value; a nil Value expects NULL.
type EqualityPair struct {
	Column string      `json:"column" yaml:"column"`
	Value  interface{} `json:"value" yaml:"value"`
}

// FilterDescriptor describes which rows belong in a view. Exactly one of
// Pairs or Expr is meaningful, selected by Kind.
type FilterDescriptor struct {
	Kind  FilterKind     `json:"kind"`
	Pairs []EqualityPair `json:"pairs,omitempty"`
	Expr  *Predicate     `json:"expr,omitempty"`
}

// EqualitySet builds a conjunctive equality filter.
func EqualitySet(pairs ...EqualityPair) FilterDescriptor {
	return FilterDescriptor{Kind: FilterEqualitySet, Pairs: pairs}
}

// Expression builds a filter from a predicate tree.
func Expression(expr Predicate) FilterDescriptor {
	return FilterDescriptor{Kind: FilterExpression, Expr: &expr}
}

// Key returns the identity of the filter. Two descriptors with the same key
// describe the same view.
func (f FilterDescriptor) Key() string {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("%#v", f)
	}
	return string(raw)
}
