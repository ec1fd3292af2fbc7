package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

func TestParseTimeWindowRolling(t *testing.T) {
	for name, d := range models.RollingRanges {
		window, resolved, err := ParseTimeWindow(TimeRangeRequest{Range: name, Start: "garbage"}, "", time.UTC)
		require.NoError(t, err, name)
		assert.Equal(t, name, resolved)
		assert.Equal(t, models.WindowRolling, window.Kind)
		assert.Equal(t, d, window.Duration)
	}
}

func TestParseTimeWindowFallback(t *testing.T) {
	window, name, err := ParseTimeWindow(TimeRangeRequest{}, models.Range7d, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Range7d, name)
	assert.Equal(t, 7*24*time.Hour, window.Duration)

	window, name, err = ParseTimeWindow(TimeRangeRequest{}, "", nil)
	require.NoError(t, err)
	assert.Nil(t, window)
	assert.Empty(t, name)
}

func TestParseTimeWindowCustom(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	window, name, err := ParseTimeWindow(TimeRangeRequest{Range: "custom", Start: "2024-05-01", End: "2024-05-03"}, "", loc)
	require.NoError(t, err)
	assert.Equal(t, models.RangeCustom, name)
	assert.Equal(t, models.WindowFixed, window.Kind)

	from, to := window.Bounds(time.Now())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2024, 5, 3, 23, 59, 59, int(999*time.Millisecond), loc), to)

	window, _, err = ParseTimeWindow(TimeRangeRequest{Range: "custom", Start: "2024-05-01"}, "", loc)
	require.NoError(t, err)
	_, to = window.Bounds(time.Now())
	assert.Equal(t, time.Date(2024, 5, 1, 23, 59, 59, int(999*time.Millisecond), loc), to)
}

func TestParseTimeWindowRejectsInvalid(t *testing.T) {
	cases := []TimeRangeRequest{
		{Range: "1y"},
		{Range: "custom"},
		{Range: "custom", Start: "05/01/2024"},
		{Range: "custom", Start: "2024-05-03", End: "2024-05-01"},
		{Range: "custom", Start: "2024-05-01", End: "tomorrow"},
	}
	for _, req := range cases {
		_, _, err := ParseTimeWindow(req, "", time.UTC)
		assert.ErrorIs(t, err, appErrors.ErrValidation, "%+v", req)
	}
}
