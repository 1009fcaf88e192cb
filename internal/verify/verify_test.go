package verify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quasarlabs/starkverify/internal/history"
	"github.com/quasarlabs/starkverify/pkg/client"
)

// fakeService scripts per-job status sequences and records submissions.
type fakeService struct {
	mu sync.Mutex

	// submissions maps class hash to the received request.
	submissions map[string]*client.VerificationRequest
	// failSubmit lists class hashes whose submission is rejected.
	failSubmit map[string]error
	// sequences maps job ID to the statuses returned by consecutive
	// polls; the last entry repeats once exhausted.
	sequences map[string][]client.JobStatus

	polls   map[string]int
	nextJob int
}

func newFakeService() *fakeService {
	return &fakeService{
		submissions: make(map[string]*client.VerificationRequest),
		failSubmit:  make(map[string]error),
		sequences:   make(map[string][]client.JobStatus),
		polls:       make(map[string]int),
	}
}

func (f *fakeService) VerifyClass(ctx context.Context, classHash string, req *client.VerificationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failSubmit[classHash]; ok {
		return "", err
	}
	f.nextJob++
	jobID := fmt.Sprintf("job-%d", f.nextJob)
	f.submissions[classHash] = req
	if _, ok := f.sequences[jobID]; !ok {
		f.sequences[jobID] = []client.JobStatus{client.StatusSuccess}
	}
	return jobID, nil
}

func (f *fakeService) GetJobStatus(ctx context.Context, jobID string) (*client.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq, ok := f.sequences[jobID]
	if !ok {
		return nil, client.ErrJobNotFound
	}
	i := f.polls[jobID]
	f.polls[jobID]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	status := seq[i]
	job := &client.Job{
		JobID:            jobID,
		Status:           status,
		ClassHash:        "0xhash",
		Name:             "pkg",
		CreatedTimestamp: 1700000000,
		UpdatedTimestamp: 1700000000 + float64(i)*2,
	}
	if status.Failed() {
		job.Message = "compilation error"
	}
	return job, nil
}

// fakeStore is an in-memory history.Store.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]history.Record
	upserts []string // status per upsert call, in order
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]history.Record)}
}

func (s *fakeStore) Upsert(ctx context.Context, rec *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.JobID] = *rec
	s.upserts = append(s.upserts, rec.Status)
	return nil
}

func (s *fakeStore) Get(ctx context.Context, jobID string) (*history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[jobID]
	if !ok {
		return nil, history.ErrNotFound
	}
	return &rec, nil
}

func (s *fakeStore) List(ctx context.Context, filter history.Filter) ([]history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []history.Record
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (s *fakeStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return 0, nil
}

func (s *fakeStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.records))
	s.records = make(map[string]history.Record)
	return n, nil
}

func (s *fakeStore) Stats(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

func (s *fakeStore) SuccessDurations(ctx context.Context, limit int) ([]time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, rec := range s.records {
		if rec.Status == "Success" && len(out) < limit {
			out = append(out, rec.Duration())
		}
	}
	return out, nil
}

func (s *fakeStore) Close() error                      { return nil }
func (s *fakeStore) Migrate(ctx context.Context) error { return nil }
