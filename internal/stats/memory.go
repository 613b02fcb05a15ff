package stats

import (
	"context"
	"sync"
	"time"
)

type dayCounts struct {
	sent   int64
	failed int64
}

// MemoryStore keeps counters in process memory. Used when no Redis is
// configured; counts reset on restart.
type MemoryStore struct {
	mu   sync.Mutex
	days map[string]*dayCounts
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory stats store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		days: make(map[string]*dayCounts),
		now:  time.Now,
	}
}

func (s *MemoryStore) bucket() *dayCounts {
	key := s.now().UTC().Format(dayFormat)
	counts, ok := s.days[key]
	if !ok {
		counts = &dayCounts{}
		s.days[key] = counts
	}
	return counts
}

// RecordSent counts one delivered message
func (s *MemoryStore) RecordSent(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket().sent++
}

// RecordFailed counts one failed send
func (s *MemoryStore) RecordFailed(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket().failed++
}

// Report returns the trailing window, oldest first
func (s *MemoryStore) Report(ctx context.Context, days int) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{}
	for _, date := range window(s.now(), days) {
		day := DayCount{Date: date}
		if counts, ok := s.days[date]; ok {
			day.Sent = counts.sent
			day.Failed = counts.failed
		}
		report.Days = append(report.Days, day)
		report.TotalSent += day.Sent
		report.TotalFailed += day.Failed
	}
	return report, nil
}

// Prune drops buckets older than the retention window
func (s *MemoryStore) Prune(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().AddDate(0, 0, -RetentionDays).Format(dayFormat)
	for date := range s.days {
		if date < cutoff {
			delete(s.days, date)
		}
	}
	return nil
}
