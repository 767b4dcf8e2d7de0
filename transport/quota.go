package transport

import (
	"sync"
	"time"
)

// Quota tracks per-user daily message counts against a configured limit,
// resetting each user's counter at local midnight (spec.md §4.10: "check
// a per-day counter against a configured quota before running the
// pipeline; increment the counter; the counter auto-expires at local
// midnight").
type Quota struct {
	mu     sync.Mutex
	limit  int
	day    map[string]time.Time
	counts map[string]int
	now    func() time.Time
}

// NewQuota builds a Quota enforcing limit messages per user per day. A
// limit of zero disables enforcement: Allow always reports true.
func NewQuota(limit int) *Quota {
	return &Quota{
		limit:  limit,
		day:    make(map[string]time.Time),
		counts: make(map[string]int),
		now:    time.Now,
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (q *Quota) reset(user string, today time.Time) {
	q.day[user] = today
	q.counts[user] = 0
}

// Allow reports whether user has remaining quota for today, without
// consuming it. Call Increment once the turn actually runs.
func (q *Quota) Allow(user string) bool {
	if q.limit <= 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	today := midnight(q.now())
	if last, ok := q.day[user]; !ok || !last.Equal(today) {
		q.reset(user, today)
	}
	return q.counts[user] < q.limit
}

// Increment records one used message for user against today's counter.
func (q *Quota) Increment(user string) {
	if q.limit <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	today := midnight(q.now())
	if last, ok := q.day[user]; !ok || !last.Equal(today) {
		q.reset(user, today)
	}
	q.counts[user]++
}
