package batch

import (
	"fmt"
	"time"
)

type Progress struct {
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Fraction  float64       `json:"fraction"`
	Percent   int           `json:"percent"`
	Elapsed   time.Duration `json:"elapsed"`
	ETA       time.Duration `json:"eta"`
	ETAKnown  bool          `json:"etaKnown"`
}

// ETAString renders the remaining time in whole seconds.
func (p Progress) ETAString() string {
	if !p.ETAKnown {
		return "calculating"
	}
	return fmt.Sprintf("%ds", int64(p.ETA/time.Second))
}

// Tracker holds the run-scoped counters of one execution. ETA is a plain
// linear extrapolation of the average cost per group so far.
type Tracker struct {
	total     int
	completed int
	start     time.Time
	now       func() time.Time
}

func NewTracker(total int) *Tracker {
	return newTrackerWithClock(total, time.Now)
}

func newTrackerWithClock(total int, now func() time.Time) *Tracker {
	return &Tracker{total: total, start: now(), now: now}
}

// Advance records one finished group. It never counts past the total.
func (t *Tracker) Advance() Progress {
	if t.completed < t.total {
		t.completed++
	}
	return t.Snapshot()
}

func (t *Tracker) Snapshot() Progress {
	p := Progress{
		Completed: t.completed,
		Total:     t.total,
		Elapsed:   t.now().Sub(t.start),
	}
	if p.Elapsed < 0 {
		p.Elapsed = 0
	}
	if t.total > 0 {
		p.Fraction = float64(t.completed) / float64(t.total)
		p.Percent = t.completed * 100 / t.total
	}
	if t.completed > 0 {
		remaining := t.total - t.completed
		eta := p.Elapsed / time.Duration(t.completed) * time.Duration(remaining)
		p.ETA = eta.Truncate(time.Second)
		p.ETAKnown = true
	}
	return p
}
