// Package stats tracks per-day delivery counters: how many messages the
// relay sent and how many sends failed. Counters are bucketed by UTC day
// and pruned after the retention window.
package stats

import (
	"context"
	"time"
)

// RetentionDays is how long day buckets are kept
const RetentionDays = 90

// dayFormat is the bucket key layout
const dayFormat = "2006-01-02"

// DayCount is one day's delivery outcome
type DayCount struct {
	Date   string `json:"date"`
	Sent   int64  `json:"sent"`
	Failed int64  `json:"failed"`
}

// Report covers the requested trailing window, oldest day first
type Report struct {
	Days        []DayCount `json:"days"`
	TotalSent   int64      `json:"total_sent"`
	TotalFailed int64      `json:"total_failed"`
}

// Store records and reports delivery statistics
type Store interface {
	// RecordSent counts one delivered message in today's bucket
	RecordSent(ctx context.Context)
	// RecordFailed counts one failed send in today's bucket
	RecordFailed(ctx context.Context)
	// Report returns the last `days` day buckets, oldest first
	Report(ctx context.Context, days int) (*Report, error)
	// Prune drops buckets older than the retention window
	Prune(ctx context.Context) error
}

// window returns the bucket dates for the trailing `days` ending today,
// oldest first
func window(now time.Time, days int) []string {
	if days < 1 {
		days = 1
	}
	dates := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		dates = append(dates, now.UTC().AddDate(0, 0, -i).Format(dayFormat))
	}
	return dates
}
