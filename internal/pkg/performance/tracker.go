package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Vodeneev/loterias/internal/pkg/models"
)

// Tracker collects the fetch attempts of a run
type Tracker struct {
	mu sync.RWMutex

	attempts []models.Attempt
	started  time.Time
}

// VariantStats aggregates the attempts made against one source variant.
type VariantStats struct {
	Variant   string
	Attempts  int
	Successes int
	Draws     int
	Rejected  int
	Total     time.Duration
}

// SuccessRate is the share of attempts that produced draws, in percent.
func (s VariantStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts) * 100
}

// AvgDuration is the mean duration of one attempt.
func (s VariantStats) AvgDuration() time.Duration {
	if s.Attempts == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Attempts)
}

func NewTracker() *Tracker {
	return &Tracker{started: time.Now()}
}

// RecordAttempt records one variant attempt. Safe for concurrent use.
func (t *Tracker) RecordAttempt(a models.Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = append(t.attempts, a)
}

// Attempts returns a copy of the recorded attempts in recording order.
func (t *Tracker) Attempts() []models.Attempt {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.Attempt(nil), t.attempts...)
}

// CountByStatus returns how many attempts ended with each status.
func (t *Tracker) CountByStatus() map[models.AttemptStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[models.AttemptStatus]int)
	for _, a := range t.attempts {
		out[a.Status]++
	}
	return out
}

// ByVariant aggregates attempts per variant, sorted by variant name.
func (t *Tracker) ByVariant() []VariantStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[string]*VariantStats)
	for _, a := range t.attempts {
		s, ok := stats[a.Variant]
		if !ok {
			s = &VariantStats{Variant: a.Variant}
			stats[a.Variant] = s
		}
		s.Attempts++
		if a.Status == models.StatusSuccess {
			s.Successes++
		}
		s.Draws += a.Draws
		s.Rejected += a.Rejected
		s.Total += a.Duration
	}

	out := make([]VariantStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out
}

// PrintSummary logs per-variant statistics
func (t *Tracker) PrintSummary() {
	variants := t.ByVariant()
	if len(variants) == 0 {
		slog.Info("No fetch attempts recorded")
		return
	}

	t.mu.RLock()
	elapsed := time.Since(t.started)
	total := len(t.attempts)
	t.mu.RUnlock()

	counts := t.CountByStatus()
	slog.Info("Fetch summary", "attempts", total, "elapsed", elapsed.Round(time.Millisecond),
		"success", counts[models.StatusSuccess],
		"empty", counts[models.StatusEmpty],
		"http_error", counts[models.StatusHTTPError],
		"parse_error", counts[models.StatusParseError])
	for _, s := range variants {
		slog.Info("Variant statistics",
			"variant", s.Variant,
			"attempts", s.Attempts,
			"success_rate", s.SuccessRate(),
			"draws", s.Draws,
			"rejected", s.Rejected,
			"avg_duration", s.AvgDuration().Round(time.Millisecond))
	}
}
