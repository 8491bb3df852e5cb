package publisher

import (
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// Quota counts publishes per local calendar day.
type Quota struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
	now   func() time.Time
}

// NewQuota returns a quota allowing limit publishes per day.
func NewQuota(limit int, now func() time.Time) *Quota {
	if now == nil {
		now = time.Now
	}
	return &Quota{limit: limit, now: now, day: now().Format(dayLayout)}
}

func (q *Quota) rollover() {
	today := q.now().Format(dayLayout)
	if today != q.day {
		q.day = today
		q.used = 0
	}
}

// Exhausted reports whether today's limit has been reached.
func (q *Quota) Exhausted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return q.used >= q.limit
}

// Remaining reports how many publishes are left today.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	if q.used >= q.limit {
		return 0
	}
	return q.limit - q.used
}

// Record counts one successful publish.
func (q *Quota) Record() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	q.used++
}

// Seed sets today's count, used when restoring after a restart.
func (q *Quota) Seed(used int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	q.used = max(used, 0)
}

// Today reports whether t falls on the quota's current calendar day.
func (q *Quota) Today(t time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return t.In(q.now().Location()).Format(dayLayout) == q.day
}

// Used reports today's publish count.
func (q *Quota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return q.used
}

// Limit returns the configured daily limit.
func (q *Quota) Limit() int { return q.limit }
