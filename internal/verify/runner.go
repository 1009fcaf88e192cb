package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/quasarlabs/starkverify/internal/collect"
	"github.com/quasarlabs/starkverify/internal/history"
	"github.com/quasarlabs/starkverify/internal/project"
	"github.com/quasarlabs/starkverify/pkg/client"
)

// Submitter is the slice of the service client the runner needs for
// submission.
type Submitter interface {
	VerifyClass(ctx context.Context, classHash string, req *client.VerificationRequest) (string, error)
}

// Service combines the client capabilities the verification core uses.
type Service interface {
	Submitter
	StatusFetcher
}

// Params are the fully-merged inputs for one contract verification.
// Flag and config precedence is resolved by the caller; the core never
// sees where a value came from.
type Params struct {
	Root           string
	Package        string
	DefaultPackage string
	BuildTool      project.BuildTool

	ClassHash    string
	ContractName string
	License      string
	Network      string

	IncludeTests bool
	IncludeLock  bool
	DryRun       bool
}

// Preparation is everything assembled locally for a submission. In
// dry-run mode this is the final product.
type Preparation struct {
	Descriptor   *project.Descriptor
	Entries      []collect.FileEntry
	ContractFile string
	Request      *client.VerificationRequest
}

// Runner executes the resolve, collect, build, submit, watch pipeline
// for a single contract.
type Runner struct {
	resolver  *project.Resolver
	collector *collect.Collector
	service   Service
	store     history.Store
	logger    *slog.Logger
}

// NewRunner wires a Runner. The history store may be nil; the logger may
// be nil.
func NewRunner(resolver *project.Resolver, collector *collect.Collector, service Service, store history.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		resolver:  resolver,
		collector: collector,
		service:   service,
		store:     store,
		logger:    logger,
	}
}

// Prepare runs the local half of the pipeline: resolution, collection,
// contract file detection and payload assembly. It performs no network
// calls, so a dry run that stops here has zero remote side effects.
func (r *Runner) Prepare(ctx context.Context, p Params) (*Preparation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := r.resolver.Resolve(p.Root, p.Package, p.DefaultPackage, p.BuildTool)
	if err != nil {
		return nil, fmt.Errorf("resolving project: %w", err)
	}

	opts := collect.Options{
		// Dojo projects ship their tests: the remote build expects the
		// full sozo source tree.
		IncludeTests: p.IncludeTests || d.BuildTool == project.BuildToolDojo,
		IncludeLock:  p.IncludeLock,
	}
	entries, err := r.collector.Collect(d, opts)
	if err != nil {
		return nil, fmt.Errorf("collecting files: %w", err)
	}

	contractFile, err := collect.DetectContractFile(entries, d.PackageName, p.ContractName)
	if err != nil {
		return nil, err
	}

	return &Preparation{
		Descriptor:   d,
		Entries:      entries,
		ContractFile: contractFile,
		Request:      BuildPayload(d, entries, contractFile, p.License),
	}, nil
}

// Submit sends a prepared request and seeds the history record for the
// new job.
func (r *Runner) Submit(ctx context.Context, p Params, prep *Preparation) (string, error) {
	jobID, err := r.service.VerifyClass(ctx, p.ClassHash, prep.Request)
	if err != nil {
		return "", err
	}

	r.logger.Info("verification submitted",
		"job_id", jobID, "class_hash", p.ClassHash, "package", prep.Descriptor.PackageName)

	if r.store != nil {
		now := time.Now().UTC()
		rec := &history.Record{
			JobID:        jobID,
			ClassHash:    p.ClassHash,
			ContractName: p.ContractName,
			PackageName:  prep.Descriptor.PackageName,
			Network:      p.Network,
			Status:       client.StatusSubmitted.String(),
			ScarbVersion: prep.Descriptor.ScarbVersion,
			CairoVersion: prep.Descriptor.CairoVersion,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if prep.Descriptor.DojoVersion != nil {
			rec.DojoVersion = *prep.Descriptor.DojoVersion
		}
		if err := r.store.Upsert(ctx, rec); err != nil {
			r.logger.Warn("history update failed", "job_id", jobID, "error", err)
		}
	}

	return jobID, nil
}

// Watch polls a previously submitted job to completion with this
// runner's client and history store.
func (r *Runner) Watch(ctx context.Context, jobID, network string, observer Observer) (*client.Job, error) {
	poller := NewPoller(r.service, r.store, r.logger)
	poller.Network = network
	return poller.Watch(ctx, jobID, observer)
}

// Verify runs the full pipeline for one contract. In dry-run mode it
// returns after Prepare with an empty job ID. When watch is true it
// polls the job to completion using the supplied observer.
func (r *Runner) Verify(ctx context.Context, p Params, watch bool, observer Observer) (string, *client.Job, error) {
	prep, err := r.Prepare(ctx, p)
	if err != nil {
		return "", nil, err
	}
	if p.DryRun {
		return "", nil, nil
	}

	jobID, err := r.Submit(ctx, p, prep)
	if err != nil {
		return "", nil, err
	}
	if !watch {
		return jobID, nil, nil
	}

	job, err := r.Watch(ctx, jobID, p.Network, observer)
	return jobID, job, err
}
