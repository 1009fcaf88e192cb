package verify

import (
	"context"
	"time"

	"github.com/quasarlabs/starkverify/internal/history"
	"github.com/quasarlabs/starkverify/pkg/client"
)

// Duration estimation parameters. The estimate is display metadata only
// and never affects control flow.
const (
	// fallbackTotal is used until enough history has accumulated.
	fallbackTotal = 40 * time.Second
	// estimateSamples is how many recent successful jobs feed the mean.
	estimateSamples = 10
	// estimateMinSamples is the minimum history size before the mean is
	// trusted over the fallback.
	estimateMinSamples = 3
)

// Progress is the advisory progress snapshot handed to observers.
type Progress struct {
	// Percent is a coarse per-stage completion percentage.
	Percent int
	// Elapsed is the time since watching started.
	Elapsed time.Duration
	// Remaining is the estimated time left; zero once terminal.
	Remaining time.Duration
}

// progressPercent maps a status to its display percentage.
func progressPercent(s client.JobStatus) int {
	switch {
	case s.Terminal():
		return 100
	case s == client.StatusSubmitted:
		return 10
	case s == client.StatusProcessing:
		return 40
	case s == client.StatusCompiled:
		return 85
	default:
		return 0
	}
}

// Estimator predicts total verification duration from past successful
// jobs, falling back to a fixed estimate when history is thin.
type Estimator struct {
	store history.Store
}

// NewEstimator creates an Estimator. A nil store always yields the
// fallback estimate.
func NewEstimator(store history.Store) *Estimator {
	return &Estimator{store: store}
}

// TotalEstimate returns the expected wall-clock duration of a
// verification run.
func (e *Estimator) TotalEstimate(ctx context.Context) time.Duration {
	if e == nil || e.store == nil {
		return fallbackTotal
	}

	durations, err := e.store.SuccessDurations(ctx, estimateSamples)
	if err != nil || len(durations) < estimateMinSamples {
		return fallbackTotal
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return sum / time.Duration(len(durations))
}

// remaining converts the total estimate into time left given the current
// stage and elapsed time. Later stages have progressively less work
// ahead of them.
func remaining(total time.Duration, status client.JobStatus, elapsed time.Duration) time.Duration {
	var ahead time.Duration
	switch status {
	case client.StatusSubmitted:
		ahead = total
	case client.StatusProcessing:
		ahead = total * 85 / 100
	case client.StatusCompiled:
		ahead = total * 10 / 100
	default:
		return 0
	}

	left := ahead - elapsed
	if left < 0 {
		// Overdue but not terminal; keep a nominal estimate on screen.
		left = 2 * time.Second
	}
	return left
}
