package query

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

var compileNow = time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)

func TestCompileEqualitySetMatchesOnlyWhenEveryPairHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	columns := []string{"permission", "replied", "removed", "escalation", "human_name"}
	values := []interface{}{"Waiting", "Manual Handle", true, false, nil}

	for i := 0; i < 200; i++ {
		perm := rng.Perm(len(columns))[:1+rng.Intn(len(columns))]
		pairs := make([]models.EqualityPair, 0, len(perm))
		for _, idx := range perm {
			pairs = append(pairs, models.EqualityPair{Column: columns[idx], Value: values[rng.Intn(len(values))]})
		}
		q := Compile(models.EqualitySet(pairs...), nil, compileNow)

		record := models.Record{models.ColumnID: fmt.Sprint(i)}
		for _, column := range columns {
			record[column] = values[rng.Intn(len(values))]
		}

		want := true
		for _, pair := range pairs {
			got := record[pair.Column]
			if pair.Value == nil {
				want = want && got == nil
				continue
			}
			want = want && got != nil && got == pair.Value
		}
		assert.Equal(t, want, Matches(q.Where, record), "pairs=%v record=%v", pairs, record)
	}
}

func TestCompileEqualitySetPairOrderIsIrrelevant(t *testing.T) {
	a := models.EqualityPair{Column: "permission", Value: "Manual Handle"}
	b := models.EqualityPair{Column: "replied", Value: false}
	c := models.EqualityPair{Column: "removed", Value: false}

	first := Compile(models.EqualitySet(a, b, c), nil, compileNow)
	second := Compile(models.EqualitySet(c, a, b), nil, compileNow)

	records := []models.Record{
		{"permission": "Manual Handle", "replied": false, "removed": false},
		{"permission": "Manual Handle", "replied": true, "removed": false},
		{"permission": "Waiting", "replied": false, "removed": false},
		{"permission": "Manual Handle", "replied": nil, "removed": false},
	}
	for _, record := range records {
		assert.Equal(t, Matches(first.Where, record), Matches(second.Where, record))
	}
	assert.Equal(t, first.OrderBy, second.OrderBy)
	assert.Equal(t, first.Descending, second.Descending)
}

func TestCompileNullPairRequiresNull(t *testing.T) {
	q := Compile(models.EqualitySet(models.EqualityPair{Column: "human_name", Value: nil}), nil, compileNow)

	assert.True(t, Matches(q.Where, models.Record{"human_name": nil}))
	assert.True(t, Matches(q.Where, models.Record{}))
	assert.False(t, Matches(q.Where, models.Record{"human_name": "Ana"}))
}

func TestCompileRollingWindowBoundaries(t *testing.T) {
	filter := models.EqualitySet(models.EqualityPair{Column: "removed", Value: false})

	for name, duration := range models.RollingRanges {
		t.Run(name, func(t *testing.T) {
			q := Compile(filter, models.Rolling(duration), compileNow)
			edge := compileNow.Add(-duration)

			inside := models.Record{"removed": false, models.ColumnCreatedAt: edge}
			outside := models.Record{"removed": false, models.ColumnCreatedAt: edge.Add(-time.Millisecond)}
			recent := models.Record{"removed": false, models.ColumnCreatedAt: compileNow}

			assert.True(t, Matches(q.Where, inside))
			assert.False(t, Matches(q.Where, outside))
			assert.True(t, Matches(q.Where, recent))
		})
	}
}

func TestCompileWindowIsConjoinedWithFilter(t *testing.T) {
	filter := models.EqualitySet(models.EqualityPair{Column: "removed", Value: false})
	q := Compile(filter, models.Rolling(24*time.Hour), compileNow)

	matchesWindowOnly := models.Record{"removed": true, models.ColumnCreatedAt: compileNow}
	assert.False(t, Matches(q.Where, matchesWindowOnly))

	require.Equal(t, models.PredicateAnd, q.Where.Kind)
	require.Len(t, q.Where.Children, 2)
	assert.Equal(t, models.Gte(models.ColumnCreatedAt, compileNow.Add(-24*time.Hour)), q.Where.Children[1])
}

func TestCompileFixedWithoutEndEqualsFixedStartStart(t *testing.T) {
	filter := models.Expression(models.Or(models.Eq("permission", "Cancel"), models.Eq("removed", true)))
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start

	open := Compile(filter, models.Fixed(start, nil), compileNow)
	closed := Compile(filter, models.Fixed(start, &end), compileNow)

	assert.Equal(t, closed, open)
}

func TestCompileFixedWindowIncludesWholeEndDay(t *testing.T) {
	filter := models.EqualitySet()
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	q := Compile(filter, models.Fixed(start, &end), compileNow)

	lastMoment := time.Date(2024, 3, 12, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	assert.True(t, Matches(q.Where, models.Record{models.ColumnCreatedAt: start}))
	assert.True(t, Matches(q.Where, models.Record{models.ColumnCreatedAt: lastMoment}))
	assert.False(t, Matches(q.Where, models.Record{models.ColumnCreatedAt: lastMoment.Add(time.Millisecond)}))
	assert.False(t, Matches(q.Where, models.Record{models.ColumnCreatedAt: start.Add(-time.Millisecond)}))
}

func TestCompileAlwaysOrdersByCreatedAtDescending(t *testing.T) {
	filters := []models.FilterDescriptor{
		models.EqualitySet(models.EqualityPair{Column: "removed", Value: false}),
		models.Expression(models.Eq("permission", "Waiting")),
	}
	windows := []*models.TimeWindow{nil, models.Rolling(7 * 24 * time.Hour), models.Fixed(compileNow, nil)}

	for _, filter := range filters {
		for _, window := range windows {
			q := Compile(filter, window, compileNow)
			assert.Equal(t, models.ColumnCreatedAt, q.OrderBy)
			assert.True(t, q.Descending)
		}
	}
}

func TestCompileUnknownWindowKindPanics(t *testing.T) {
	assert.Panics(t, func() {
		Compile(models.EqualitySet(), &models.TimeWindow{Kind: "sliding"}, compileNow)
	})
}

func TestApplySortsNewestFirst(t *testing.T) {
	q := Compile(models.EqualitySet(models.EqualityPair{Column: "removed", Value: false}), nil, compileNow)
	records := []models.Record{
		{"id": "a", "removed": false, models.ColumnCreatedAt: compileNow.Add(-3 * time.Hour)},
		{"id": "b", "removed": true, models.ColumnCreatedAt: compileNow.Add(-1 * time.Hour)},
		{"id": "c", "removed": false, models.ColumnCreatedAt: compileNow.Add(-1 * time.Hour)},
		{"id": "d", "removed": false, models.ColumnCreatedAt: compileNow.Add(-2 * time.Hour)},
	}

	got := Apply(q, records)

	ids := make([]string, 0, len(got))
	for _, record := range got {
		ids = append(ids, record.ID())
	}
	assert.Equal(t, []string{"c", "d", "a"}, ids)
}

func TestMatchesUsesThreeValuedLogic(t *testing.T) {
	p := models.Not(models.Eq("removed", true))

	assert.True(t, Matches(p, models.Record{"removed": false}))
	assert.False(t, Matches(p, models.Record{"removed": true}))
	assert.False(t, Matches(p, models.Record{"removed": nil}), "NOT of unknown stays unknown")

	either := models.Or(models.IsNull("removed"), models.Eq("removed", false))
	assert.True(t, Matches(either, models.Record{"removed": nil}))
	assert.True(t, Matches(either, models.Record{"removed": false}))
	assert.False(t, Matches(either, models.Record{"removed": true}))
}
