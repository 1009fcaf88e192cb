package verify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quasarlabs/starkverify/internal/collect"
	"github.com/quasarlabs/starkverify/pkg/client"
)

// BatchItem is one contract entry of a batch verification request.
type BatchItem struct {
	ClassHash    string
	ContractName string
	// Package optionally overrides the package selection for this item.
	Package string
}

// ItemState is the outcome of one batch item.
type ItemState string

const (
	// ItemSucceeded: the job reached Success during the watch phase.
	ItemSucceeded ItemState = "succeeded"
	// ItemFailed: submission failed, or the job reached a terminal
	// failure.
	ItemFailed ItemState = "failed"
	// ItemSkipped: never attempted because fail-fast stopped the batch.
	ItemSkipped ItemState = "skipped"
	// ItemPending: submitted but not watched to completion; the job ID
	// remains queryable.
	ItemPending ItemState = "pending"
)

// ItemResult pairs a batch item with its outcome.
type ItemResult struct {
	Item  BatchItem
	JobID string
	State ItemState
	Err   error
}

// BatchOptions control a batch run. Base carries the parameters shared
// by every item; per-item fields of Base are overwritten from the item.
type BatchOptions struct {
	Base           Params
	FailFast       bool
	InterItemDelay time.Duration
	Watch          bool
}

// Summary is the final accounting of a batch run. It is derived purely
// from the per-item outcomes.
type Summary struct {
	RunID     string
	Total     int
	Submitted int
	Succeeded int
	Failed    int
	Skipped   int
	Pending   int
	Items     []ItemResult
}

func summarize(runID string, items []ItemResult) *Summary {
	s := &Summary{RunID: runID, Total: len(items), Items: items}
	for _, it := range items {
		switch it.State {
		case ItemSucceeded:
			s.Submitted++
			s.Succeeded++
		case ItemPending:
			if it.JobID != "" {
				s.Submitted++
			}
			s.Pending++
		case ItemFailed:
			if it.JobID != "" {
				s.Submitted++
			}
			s.Failed++
		case ItemSkipped:
			s.Skipped++
		}
	}
	return s
}

// BatchObserver receives one aggregated progress update per watch tick.
type BatchObserver func(succeeded, failed, pending int)

// Orchestrator sequences batch submissions and tracks the resulting
// jobs.
type Orchestrator struct {
	runner *Runner

	interval    time.Duration
	maxAttempts int
}

// NewOrchestrator creates an Orchestrator on top of a Runner.
func NewOrchestrator(runner *Runner, opts ...PollerOption) *Orchestrator {
	// Reuse the poller options for cadence overrides in tests.
	p := &Poller{interval: PollInterval, maxAttempts: MaxPollAttempts}
	for _, opt := range opts {
		opt(p)
	}
	return &Orchestrator{
		runner:      runner,
		interval:    p.interval,
		maxAttempts: p.maxAttempts,
	}
}

// Run executes the batch: a strictly sequential submission phase,
// followed (optionally) by a watch phase over every submitted job. The
// observer may be nil.
func (o *Orchestrator) Run(ctx context.Context, items []BatchItem, opts BatchOptions, observer BatchObserver) (*Summary, error) {
	runID := uuid.NewString()
	results := make([]ItemResult, len(items))
	for i, item := range items {
		results[i] = ItemResult{Item: item, State: ItemSkipped}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.InterItemDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.InterItemDelay), 1)
	}

	// Collection reuse across consecutive items: only when the item
	// resolves to the same package root as its predecessor, since the
	// collection flags are constant within a run.
	var lastPrep *Preparation

	for i, item := range items {
		if err := limiter.Wait(ctx); err != nil {
			return summarize(runID, results), err
		}

		p := opts.Base
		p.ClassHash = item.ClassHash
		p.ContractName = item.ContractName
		if item.Package != "" {
			p.Package = item.Package
		}

		prep, err := o.prepare(ctx, p, lastPrep)
		if err == nil {
			lastPrep = prep
			if p.DryRun {
				results[i] = ItemResult{Item: item, State: ItemPending}
				continue
			}
			var jobID string
			jobID, err = o.runner.Submit(ctx, p, prep)
			if err == nil {
				results[i] = ItemResult{Item: item, JobID: jobID, State: ItemPending}
				continue
			}
		}

		results[i] = ItemResult{Item: item, State: ItemFailed, Err: err}
		if ctx.Err() != nil {
			return summarize(runID, results), ctx.Err()
		}
		if opts.FailFast {
			break // remaining items stay Skipped
		}
	}

	if opts.Watch && !opts.Base.DryRun {
		o.watch(ctx, results, opts.Base.Network, observer)
	}

	return summarize(runID, results), nil
}

// prepare resolves the item and either reuses the previous item's
// collected file set or collects fresh. Resolution itself always runs
// per item.
func (o *Orchestrator) prepare(ctx context.Context, p Params, last *Preparation) (*Preparation, error) {
	if last == nil {
		return o.runner.Prepare(ctx, p)
	}

	d, err := o.runner.resolver.Resolve(p.Root, p.Package, p.DefaultPackage, p.BuildTool)
	if err != nil {
		return nil, err
	}
	if d.PackageName != last.Descriptor.PackageName || d.Root != last.Descriptor.Root {
		return o.runner.Prepare(ctx, p)
	}

	contractFile, err := collect.DetectContractFile(last.Entries, d.PackageName, p.ContractName)
	if err != nil {
		return nil, err
	}

	return &Preparation{
		Descriptor:   last.Descriptor,
		Entries:      last.Entries,
		ContractFile: contractFile,
		Request:      BuildPayload(last.Descriptor, last.Entries, contractFile, p.License),
	}, nil
}

// watch polls every submitted job each tick until all reach a terminal
// state or the attempt cap is exhausted, reporting one aggregated line
// per tick. Items still pending when the window closes keep their
// Pending state.
func (o *Orchestrator) watch(ctx context.Context, results []ItemResult, network string, observer BatchObserver) {
	poller := NewPoller(o.runner.service, o.runner.store, o.runner.logger)
	poller.Network = network

	pending := make([]int, 0, len(results))
	for i, r := range results {
		if r.State == ItemPending && r.JobID != "" {
			pending = append(pending, i)
		}
	}

	for attempt := 1; attempt <= o.maxAttempts && len(pending) > 0; attempt++ {
		remaining := pending[:0]
		for _, i := range pending {
			job, err := o.runner.service.GetJobStatus(ctx, results[i].JobID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				remaining = append(remaining, i)
				continue
			}

			poller.persist(ctx, job)

			switch {
			case job.Status == client.StatusSuccess:
				results[i].State = ItemSucceeded
			case job.Status.Failed():
				results[i].State = ItemFailed
				results[i].Err = &TerminalFailureError{JobID: job.JobID, Status: job.Status, Message: job.FailureMessage()}
			default:
				remaining = append(remaining, i)
			}
		}
		pending = remaining

		if observer != nil {
			var succeeded, failed int
			for _, r := range results {
				switch r.State {
				case ItemSucceeded:
					succeeded++
				case ItemFailed:
					failed++
				}
			}
			observer(succeeded, failed, len(pending))
		}

		if len(pending) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.interval):
		}
	}
}
