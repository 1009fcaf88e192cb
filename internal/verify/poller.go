package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/quasarlabs/starkverify/internal/history"
	"github.com/quasarlabs/starkverify/pkg/client"
)

// Polling parameters: a fixed cadence with a hard attempt cap, giving a
// ten minute local watch window.
const (
	PollInterval    = 2 * time.Second
	MaxPollAttempts = 300
)

// ErrPollTimeout signals that the local watch window closed before the
// job reached a terminal state. The remote job keeps running and its ID
// stays queryable; this is not a verification failure.
var ErrPollTimeout = errors.New("verification still in progress after the polling window; check the job status again later")

// StatusFetcher is the slice of the service client the poller needs.
type StatusFetcher interface {
	GetJobStatus(ctx context.Context, jobID string) (*client.Job, error)
}

// Observer receives every polled snapshot together with advisory
// progress data. Rendering lives entirely in the caller.
type Observer func(job *client.Job, progress Progress)

// Poller drives a single job to a terminal state.
type Poller struct {
	fetcher   StatusFetcher
	store     history.Store
	estimator *Estimator
	logger    *slog.Logger

	// Network labels history records with the endpoint the job ran on.
	Network string

	interval    time.Duration
	maxAttempts int
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollInterval overrides the poll cadence; tests use this to avoid
// real sleeps.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithMaxAttempts overrides the attempt cap.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) { p.maxAttempts = n }
}

// NewPoller creates a Poller. The history store may be nil, which
// disables persistence; the logger may be nil.
func NewPoller(fetcher StatusFetcher, store history.Store, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Poller{
		fetcher:     fetcher,
		store:       store,
		estimator:   NewEstimator(store),
		logger:      logger,
		interval:    PollInterval,
		maxAttempts: MaxPollAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// statusRank orders the non-terminal stages so an out-of-order snapshot
// from the service never shows up as a regression.
func statusRank(s client.JobStatus) int {
	switch s {
	case client.StatusSubmitted:
		return 1
	case client.StatusProcessing:
		return 2
	case client.StatusCompiled:
		return 3
	case client.StatusCompileFailed, client.StatusFail, client.StatusSuccess:
		return 4
	default:
		return 0 // Unknown carries no ordering information
	}
}

// Watch polls the job until it reaches a terminal state, the attempt cap
// is exhausted, or ctx is cancelled. Every snapshot is handed to the
// observer, and each observed change is upserted into history so an
// interrupted watch still leaves a consistent record. The returned job
// is the final snapshot; on timeout it is returned alongside
// ErrPollTimeout.
func (p *Poller) Watch(ctx context.Context, jobID string, observer Observer) (*client.Job, error) {
	start := time.Now()
	total := p.estimator.TotalEstimate(ctx)

	var last *client.Job
	bestRank := 0

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		job, err := p.fetcher.GetJobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			// Transient fetch errors consume an attempt but do not end
			// the watch; the next tick retries.
			p.logger.Warn("status fetch failed", "job_id", jobID, "attempt", attempt, "error", err)
		} else {
			if rank := statusRank(job.Status); rank >= bestRank {
				bestRank = rank
			} else if !job.Status.Terminal() && job.Status != client.StatusUnknown {
				// Forward-only: ignore a stale snapshot's status.
				job.Status = last.Status
			}

			elapsed := time.Since(start)
			if observer != nil {
				observer(job, Progress{
					Percent:   progressPercent(job.Status),
					Elapsed:   elapsed,
					Remaining: remaining(total, job.Status, elapsed),
				})
			}

			if changed(last, job) {
				p.persist(ctx, job)
			}
			last = job

			if job.Status.Terminal() {
				return job, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	return last, ErrPollTimeout
}

// changed reports whether the snapshot differs from the last persisted
// one in any field history cares about.
func changed(prev, curr *client.Job) bool {
	if prev == nil {
		return true
	}
	return prev.Status != curr.Status ||
		prev.Message != curr.Message ||
		prev.UpdatedTimestamp != curr.UpdatedTimestamp
}

func (p *Poller) persist(ctx context.Context, job *client.Job) {
	if p.store == nil {
		return
	}
	if err := p.store.Upsert(ctx, recordFromJob(job, p.Network)); err != nil {
		p.logger.Warn("history update failed", "job_id", job.JobID, "error", err)
	}
}

// PersistSnapshot upserts a one-shot status snapshot into history,
// mirroring what a watch would have recorded.
func PersistSnapshot(ctx context.Context, store history.Store, job *client.Job, network string) error {
	if store == nil {
		return nil
	}
	return store.Upsert(ctx, recordFromJob(job, network))
}

// recordFromJob maps a service snapshot onto a history record.
func recordFromJob(job *client.Job, network string) *history.Record {
	rec := &history.Record{
		JobID:        job.JobID,
		ClassHash:    job.ClassHash,
		ContractName: job.Name,
		PackageName:  job.Name,
		Network:      network,
		Status:       job.Status.String(),
		CreatedAt:    timeFromUnix(job.CreatedTimestamp),
		UpdatedAt:    timeFromUnix(job.UpdatedTimestamp),
	}
	if job.Status.Failed() {
		rec.ErrorMessage = job.FailureMessage()
	}
	if job.DojoVersion != nil {
		rec.DojoVersion = *job.DojoVersion
	}
	return rec
}

func timeFromUnix(ts float64) time.Time {
	if ts == 0 {
		return time.Now().UTC()
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
