// Package limits provides spending-limit models and admission checking.
//
// A spending limit caps cumulative debit spend within a scope (workspace or
// agent) and time frame. Limits are a governance concern independent of
// balance sufficiency: they are evaluated even for calls that never touch
// the balance (own-credentials requests).
package limits

import (
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// Scope identifies what a spending limit applies to.
type Scope string

// Scope constants.
const (
	ScopeWorkspace Scope = "workspace"
	ScopeAgent     Scope = "agent"
)

// TimeFrame is the rolling window a limit is evaluated over.
type TimeFrame string

// TimeFrame constants.
const (
	FrameDaily   TimeFrame = "daily"
	FrameWeekly  TimeFrame = "weekly"
	FrameMonthly TimeFrame = "monthly"
)

// SpendingLimit caps cumulative spend within a scope and time frame.
type SpendingLimit struct {
	ID        id.LimitID  `json:"id"`
	Scope     Scope       `json:"scope"`
	TimeFrame TimeFrame   `json:"time_frame"`
	Limit     types.Money `json:"limit"`
}

// Violation describes a single breached limit, with the spend already
// accumulated in the frame and the candidate cost that would breach it.
type Violation struct {
	Limit     SpendingLimit `json:"limit"`
	Current   types.Money   `json:"current"`
	Candidate types.Money   `json:"candidate"`
}

// Result is the outcome of evaluating all configured limits.
// Violations always carries the complete list of breached limits,
// never just the first.
type Result struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations,omitempty"`
}

// FrameStart returns the beginning of the time frame containing t.
// Daily and weekly frames are calendar-aligned in UTC; weeks start Monday.
func FrameStart(t time.Time, frame TimeFrame) time.Time {
	t = t.UTC()
	switch frame {
	case FrameDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case FrameWeekly:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday belongs to the preceding Monday-start week
		}
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -(weekday - 1))
	case FrameMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}
