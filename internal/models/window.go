package models

import (
	"fmt"
	"time"
)

// WindowKind tags the active variant of a TimeWindow.
type WindowKind string

const (
	WindowRolling WindowKind = "rolling"
	WindowFixed   WindowKind = "fixed"
)

// Named rolling ranges offered by the dashboard.
const (
	Range24h    = "24h"
	Range7d     = "7d"
	Range30d    = "30d"
	Range90d    = "90d"
	RangeCustom = "custom"
)

// RollingRanges maps range names onto their durations.
var RollingRanges = map[string]time.Duration{
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
	Range30d: 30 * 24 * time.Hour,
	Range90d: 90 * 24 * time.Hour,
}

// TimeWindow constrains records by creation time. A nil *TimeWindow means
// no constraint.
type TimeWindow struct {
	Kind     WindowKind    `json:"kind"`
	Duration time.Duration `json:"duration,omitempty"`
	Start    time.Time     `json:"start,omitempty"`
	End      *time.Time    `json:"end,omitempty"`
}

// Rolling returns a window covering the last d, evaluated at fetch time.
func Rolling(d time.Duration) *TimeWindow {
	return &TimeWindow{Kind: WindowRolling, Duration: d}
}

// Fixed returns a window from start to the end of day of end. A nil end
// falls back to start.
func Fixed(start time.Time, end *time.Time) *TimeWindow {
	return &TimeWindow{Kind: WindowFixed, Start: start, End: end}
}

// Bounds resolves the window against now. The upper bound is zero for
// rolling windows.
func (w *TimeWindow) Bounds(now time.Time) (from time.Time, to time.Time) {
	switch w.Kind {
	case WindowRolling:
		return now.Add(-w.Duration), time.Time{}
	case WindowFixed:
		last := w.Start
		if w.End != nil {
			last = *w.End
		}
		return w.Start, EndOfDay(last)
	default:
		panic(fmt.Sprintf("unknown time window kind %q", w.Kind))
	}
}

// Key returns the identity of the window; "" for no window.
func (w *TimeWindow) Key() string {
	if w == nil {
		return ""
	}
	switch w.Kind {
	case WindowRolling:
		return "rolling:" + w.Duration.String()
	case WindowFixed:
		end := w.Start
		if w.End != nil {
			end = *w.End
		}
		return "fixed:" + w.Start.Format(time.RFC3339) + ".." + end.Format("2006-01-02")
	default:
		return string(w.Kind)
	}
}

// EndOfDay returns the last millisecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
