package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

func TestToSelectEqualitySet(t *testing.T) {
	q := Compile(models.EqualitySet(
		models.EqualityPair{Column: models.ColumnPermission, Value: string(models.PermissionManualHandle)},
		models.EqualityPair{Column: models.ColumnReplied, Value: false},
		models.EqualityPair{Column: models.ColumnHumanName, Value: nil},
	), nil, compileNow)

	builder, err := ToSelect("inbox", q)
	require.NoError(t, err)
	sql, args, err := builder.ToSql()
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "inbox" WHERE ("permission" = $1 AND "replied" = $2 AND "human_name" IS NULL) ORDER BY "created_at" DESC`, sql)
	assert.Equal(t, []interface{}{"Manual Handle", false}, args)
}

func TestToSelectConjoinsRollingWindow(t *testing.T) {
	q := Compile(models.EqualitySet(models.EqualityPair{Column: "removed", Value: false}), models.Rolling(24*time.Hour), compileNow)

	builder, err := ToSelect("inbox", q)
	require.NoError(t, err)
	sql, args, err := builder.ToSql()
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "inbox" WHERE (("removed" = $1) AND "created_at" >= $2) ORDER BY "created_at" DESC`, sql)
	require.Len(t, args, 2)
	assert.Equal(t, compileNow.Add(-24*time.Hour), args[1])
}

func TestToSelectQuotesMixedCaseColumns(t *testing.T) {
	q := Compile(models.EqualitySet(
		models.EqualityPair{Column: models.ColumnEscalatedReplied, Value: false},
	), nil, compileNow).WithColumns(models.ColumnID, models.ColumnEscalatedReply)

	builder, err := ToSelect("inbox", q)
	require.NoError(t, err)
	sql, _, err := builder.ToSql()
	require.NoError(t, err)

	assert.Equal(t, `SELECT "id", "Escalated_reply" FROM "inbox" WHERE ("Escalated_replied" = $1) ORDER BY "created_at" DESC`, sql)
}

func TestToSqlizerExpressionTree(t *testing.T) {
	expr := models.Or(
		models.And(models.Eq("permission", "Waiting"), models.Eq("removed", false)),
		models.Not(models.IsNull("feedback")),
	)

	cond, err := ToSqlizer(expr)
	require.NoError(t, err)
	sql, args, err := cond.ToSql()
	require.NoError(t, err)

	assert.Equal(t, `(("permission" = ? AND "removed" = ?) OR NOT ("feedback" IS NULL))`, sql)
	assert.Equal(t, []interface{}{"Waiting", false}, args)
}

func TestToSqlizerRejectsEqWithoutValue(t *testing.T) {
	_, err := ToSqlizer(models.Eq("permission", nil))
	assert.Error(t, err)

	_, err = ToSqlizer(models.Predicate{Kind: models.PredicateNot})
	assert.Error(t, err)
}
