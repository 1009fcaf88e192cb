package verify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasarlabs/starkverify/internal/history"
	"github.com/quasarlabs/starkverify/pkg/client"
)

// seedSuccesses inserts completed jobs whose Duration() equals d.
func seedSuccesses(t *testing.T, store *fakeStore, prefix string, durations ...time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	for i, d := range durations {
		require.NoError(t, store.Upsert(context.Background(), &history.Record{
			JobID:     fmt.Sprintf("%s-%d", prefix, i),
			Status:    "Success",
			CreatedAt: now.Add(-d),
			UpdatedAt: now,
		}))
	}
}

func TestTotalEstimateFallsBackWithoutStore(t *testing.T) {
	assert.Equal(t, fallbackTotal, NewEstimator(nil).TotalEstimate(context.Background()))
}

func TestTotalEstimateFallsBackBelowMinimumSamples(t *testing.T) {
	store := newFakeStore()
	seedSuccesses(t, store, "job", 30*time.Second, 60*time.Second)

	got := NewEstimator(store).TotalEstimate(context.Background())
	assert.Equal(t, fallbackTotal, got)
}

func TestTotalEstimateMeansRecentSuccesses(t *testing.T) {
	store := newFakeStore()
	seedSuccesses(t, store, "job", 30*time.Second, 60*time.Second, 90*time.Second)

	// A failed job must not feed the mean.
	require.NoError(t, store.Upsert(context.Background(), &history.Record{
		JobID:     "job-failed",
		Status:    "CompileFailed",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		UpdatedAt: time.Now().UTC(),
	}))

	got := NewEstimator(store).TotalEstimate(context.Background())
	assert.Equal(t, 60*time.Second, got)
}

func TestTotalEstimateCapsSampleCount(t *testing.T) {
	store := newFakeStore()
	durations := make([]time.Duration, estimateSamples+5)
	for i := range durations {
		durations[i] = 20 * time.Second
	}
	seedSuccesses(t, store, "job", durations...)

	got := NewEstimator(store).TotalEstimate(context.Background())
	assert.Equal(t, 20*time.Second, got)
}

func TestRemainingByStage(t *testing.T) {
	total := 100 * time.Second

	tests := []struct {
		name    string
		status  client.JobStatus
		elapsed time.Duration
		want    time.Duration
	}{
		{name: "submitted has everything ahead", status: client.StatusSubmitted, elapsed: 10 * time.Second, want: 90 * time.Second},
		{name: "processing has most ahead", status: client.StatusProcessing, elapsed: 5 * time.Second, want: 80 * time.Second},
		{name: "compiled is nearly done", status: client.StatusCompiled, elapsed: 2 * time.Second, want: 8 * time.Second},
		{name: "overdue keeps a nominal floor", status: client.StatusSubmitted, elapsed: 2 * total, want: 2 * time.Second},
		{name: "terminal has nothing left", status: client.StatusSuccess, elapsed: 10 * time.Second, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remaining(total, tt.status, tt.elapsed))
		})
	}
}
