package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"
)

func TestSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "history.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("UpsertAndGet", func(t *testing.T) {
		rec := &Record{
			JobID:        "job-1",
			ClassHash:    "0xabc",
			ContractName: "Token",
			PackageName:  "my_token",
			Network:      "sepolia",
			Status:       "Submitted",
			ScarbVersion: "2.8.4",
			CairoVersion: "2.8.0",
			CreatedAt:    base,
			UpdatedAt:    base,
		}

		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		got, err := store.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ClassHash != rec.ClassHash {
			t.Errorf("Get().ClassHash = %v, want %v", got.ClassHash, rec.ClassHash)
		}
		if got.Status != "Submitted" {
			t.Errorf("Get().Status = %v, want Submitted", got.Status)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("Get().CreatedAt = %v, want %v", got.CreatedAt, base)
		}
	})

	t.Run("UpsertIsIdempotentOnJobID", func(t *testing.T) {
		update := &Record{
			JobID:     "job-1",
			ClassHash: "0xabc",
			Network:   "sepolia",
			Status:    "Success",
			CreatedAt: base,
			UpdatedAt: base.Add(45 * time.Second),
		}
		if err := store.Upsert(ctx, update); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := store.Upsert(ctx, update); err != nil {
			t.Fatalf("second Upsert() error = %v", err)
		}

		got, err := store.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != "Success" {
			t.Errorf("Get().Status = %v, want Success", got.Status)
		}
		if got.Duration() != 45*time.Second {
			t.Errorf("Get().Duration() = %v, want 45s", got.Duration())
		}
		// The insert-time fields survive the update.
		if got.ContractName != "Token" {
			t.Errorf("Get().ContractName = %v, want Token", got.ContractName)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "no-such-job")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListWithFilters", func(t *testing.T) {
		seed := []Record{
			{JobID: "job-2", ClassHash: "0x2", Network: "mainnet", Status: "Fail",
				CreatedAt: base.Add(1 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)},
			{JobID: "job-3", ClassHash: "0x3", Network: "sepolia", Status: "Success",
				CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(3 * time.Minute)},
			{JobID: "job-4", ClassHash: "0x4", Network: "sepolia", Status: "Success",
				CreatedAt: base.Add(3 * time.Minute), UpdatedAt: base.Add(4 * time.Minute)},
		}
		for i := range seed {
			if err := store.Upsert(ctx, &seed[i]); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
		}

		all, err := store.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 4 {
			t.Errorf("List() returned %d records, want 4", len(all))
		}
		if all[0].JobID != "job-4" {
			t.Errorf("List()[0].JobID = %v, want job-4 (newest first)", all[0].JobID)
		}

		successes, err := store.List(ctx, Filter{Status: "Success"})
		if err != nil {
			t.Fatalf("List(Status) error = %v", err)
		}
		if len(successes) != 3 {
			t.Errorf("List(Status=Success) returned %d records, want 3", len(successes))
		}

		mainnet, err := store.List(ctx, Filter{Network: "mainnet"})
		if err != nil {
			t.Fatalf("List(Network) error = %v", err)
		}
		if len(mainnet) != 1 || mainnet[0].JobID != "job-2" {
			t.Errorf("List(Network=mainnet) = %v, want only job-2", mainnet)
		}

		limited, err := store.List(ctx, Filter{Limit: 2})
		if err != nil {
			t.Fatalf("List(Limit) error = %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("List(Limit=2) returned %d records, want 2", len(limited))
		}
	})

	t.Run("Stats", func(t *testing.T) {
		counts, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if counts["Success"] != 3 {
			t.Errorf("Stats()[Success] = %d, want 3", counts["Success"])
		}
		if counts["Fail"] != 1 {
			t.Errorf("Stats()[Fail] = %d, want 1", counts["Fail"])
		}
	})

	t.Run("SuccessDurations", func(t *testing.T) {
		durations, err := store.SuccessDurations(ctx, 10)
		if err != nil {
			t.Fatalf("SuccessDurations() error = %v", err)
		}
		if len(durations) != 3 {
			t.Fatalf("SuccessDurations() returned %d samples, want 3", len(durations))
		}
		// Newest first: job-4 and job-3 took a minute, job-1 took 45s.
		if durations[0] != time.Minute || durations[1] != time.Minute || durations[2] != 45*time.Second {
			t.Errorf("SuccessDurations() = %v, want [1m 1m 45s]", durations)
		}

		limited, err := store.SuccessDurations(ctx, 1)
		if err != nil {
			t.Fatalf("SuccessDurations(1) error = %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("SuccessDurations(1) returned %d samples, want 1", len(limited))
		}
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		// Everything in the fixture was created far in the past.
		deleted, err := store.DeleteOlderThan(ctx, 365*24*time.Hour)
		if err != nil {
			t.Fatalf("DeleteOlderThan() error = %v", err)
		}
		if deleted != 0 {
			t.Errorf("DeleteOlderThan(1y) deleted %d records, want 0", deleted)
		}

		deleted, err = store.DeleteOlderThan(ctx, 0)
		if err != nil {
			t.Fatalf("DeleteOlderThan(0) error = %v", err)
		}
		if deleted != 4 {
			t.Errorf("DeleteOlderThan(0) deleted %d records, want 4", deleted)
		}
	})

	t.Run("DeleteAll", func(t *testing.T) {
		rec := &Record{JobID: "job-5", ClassHash: "0x5", Network: "dev",
			Status: "Submitted", CreatedAt: base, UpdatedAt: base}
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		deleted, err := store.DeleteAll(ctx)
		if err != nil {
			t.Fatalf("DeleteAll() error = %v", err)
		}
		if deleted != 1 {
			t.Errorf("DeleteAll() deleted %d records, want 1", deleted)
		}

		remaining, err := store.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(remaining) != 0 {
			t.Errorf("List() after DeleteAll returned %d records", len(remaining))
		}
	})
}

func TestNewSelectsBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	t.Run("sqlite default", func(t *testing.T) {
		store, err := New(Config{Path: filepath.Join(t.TempDir(), "h.db")}, logger)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*SQLiteStore); !ok {
			t.Errorf("New() = %T, want *SQLiteStore", store)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(Config{Backend: "etcd"}, logger)
		if err == nil {
			t.Error("New() expected error for unknown backend")
		}
	})
}
