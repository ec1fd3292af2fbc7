package service

import (
	"strings"
	"time"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// TimeRangeRequest carries the range query parameters of the dashboard.
type TimeRangeRequest struct {
	Range string `form:"range"`
	Start string `form:"start"`
	End   string `form:"end"`
}

// ParseTimeWindow resolves a named range into a window. Rolling ranges
// ignore start and end. "custom" requires start (YYYY-MM-DD) and takes an
// optional end; dates are interpreted in loc. An empty range yields
// fallback, which may itself be empty for no window.
func ParseTimeWindow(req TimeRangeRequest, fallback string, loc *time.Location) (*models.TimeWindow, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	name := strings.ToLower(strings.TrimSpace(req.Range))
	if name == "" {
		name = fallback
	}
	if name == "" {
		return nil, "", nil
	}
	if d, ok := models.RollingRanges[name]; ok {
		return models.Rolling(d), name, nil
	}
	if name != models.RangeCustom {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "range must be one of 24h, 7d, 30d, 90d or custom")
	}

	startRaw := strings.TrimSpace(req.Start)
	if startRaw == "" {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "start is required for a custom range")
	}
	start, err := time.ParseInLocation(dateLayout, startRaw, loc)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "invalid start, expected YYYY-MM-DD")
	}
	var end *time.Time
	if endRaw := strings.TrimSpace(req.End); endRaw != "" {
		parsed, err := time.ParseInLocation(dateLayout, endRaw, loc)
		if err != nil {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, "invalid end, expected YYYY-MM-DD")
		}
		if parsed.Before(start) {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, "end must not be before start")
		}
		end = &parsed
	}
	return models.Fixed(start, end), name, nil
}
