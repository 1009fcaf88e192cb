package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasarlabs/starkverify/internal/collect"
	"github.com/quasarlabs/starkverify/internal/project"
	"github.com/quasarlabs/starkverify/pkg/client"
)

func writeFixtureProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Scarb.toml": `[package]
name = "my_token"
version = "0.1.0"
`,
		"src/lib.cairo":   "mod token;\nmod vault;\n",
		"src/token.cairo": "#[starknet::contract]\nmod Token {\n}\n",
		"src/vault.cairo": "#[starknet::contract]\nmod Vault {\n}\n",
	}
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return dir
}

func newTestRunner(svc Service, store *fakeStore) *Runner {
	resolver := &project.Resolver{Toolchain: project.StaticToolchain{Scarb: "2.8.4"}}
	if store == nil {
		return NewRunner(resolver, collect.New(nil), svc, nil, nil)
	}
	return NewRunner(resolver, collect.New(nil), svc, store, nil)
}

func fastOrchestrator(runner *Runner) *Orchestrator {
	return NewOrchestrator(runner, WithPollInterval(time.Millisecond), WithMaxAttempts(20))
}

func TestBatchAllSucceed(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()
	store := newFakeStore()

	items := []BatchItem{
		{ClassHash: "0x1", ContractName: "Token"},
		{ClassHash: "0x2", ContractName: "Vault"},
	}
	opts := BatchOptions{
		Base:  Params{Root: root, Network: "sepolia"},
		Watch: true,
	}

	var ticks int
	summary, err := fastOrchestrator(newTestRunner(svc, store)).Run(context.Background(), items, opts, func(succeeded, failed, pending int) {
		ticks++
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Submitted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Pending)
	assert.NotEmpty(t, summary.RunID)
	assert.GreaterOrEqual(t, ticks, 1, "one aggregated update per tick")

	// Each item got its own contract file.
	assert.Equal(t, "src/token.cairo", svc.submissions["0x1"].ContractFile)
	assert.Equal(t, "src/vault.cairo", svc.submissions["0x2"].ContractFile)
}

func TestBatchSubmissionFailureWithoutFailFast(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()
	svc.failSubmit["0x2"] = errors.New("boom")

	items := []BatchItem{
		{ClassHash: "0x1", ContractName: "Token"},
		{ClassHash: "0x2", ContractName: "Vault"},
		{ClassHash: "0x3", ContractName: "Token"},
	}
	opts := BatchOptions{Base: Params{Root: root}, Watch: true}

	summary, err := fastOrchestrator(newTestRunner(svc, nil)).Run(context.Background(), items, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Submitted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Skipped)

	assert.Equal(t, ItemFailed, summary.Items[1].State)
	assert.ErrorContains(t, summary.Items[1].Err, "boom")
	assert.Equal(t, ItemSucceeded, summary.Items[0].State)
	assert.Equal(t, ItemSucceeded, summary.Items[2].State)
}

func TestBatchFailFastSkipsRemainder(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()
	svc.failSubmit["0x1"] = errors.New("rate limited")

	items := []BatchItem{
		{ClassHash: "0x1", ContractName: "Token"},
		{ClassHash: "0x2", ContractName: "Vault"},
		{ClassHash: "0x3", ContractName: "Token"},
	}
	opts := BatchOptions{Base: Params{Root: root}, FailFast: true}

	summary, err := fastOrchestrator(newTestRunner(svc, nil)).Run(context.Background(), items, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Submitted)
	assert.Equal(t, ItemSkipped, summary.Items[1].State)
	assert.Equal(t, ItemSkipped, summary.Items[2].State)
	assert.Empty(t, svc.submissions, "skipped items are never attempted")
}

func TestBatchTerminalFailureDuringWatch(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()
	svc.sequences["job-1"] = []client.JobStatus{client.StatusProcessing, client.StatusCompileFailed}
	svc.sequences["job-2"] = []client.JobStatus{client.StatusSuccess}

	items := []BatchItem{
		{ClassHash: "0x1", ContractName: "Token"},
		{ClassHash: "0x2", ContractName: "Vault"},
	}
	opts := BatchOptions{Base: Params{Root: root}, Watch: true}

	summary, err := fastOrchestrator(newTestRunner(svc, nil)).Run(context.Background(), items, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	var terminal *TerminalFailureError
	require.ErrorAs(t, summary.Items[0].Err, &terminal)
	assert.Equal(t, client.StatusCompileFailed, terminal.Status)
}

func TestBatchWithoutWatchLeavesItemsPending(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()

	items := []BatchItem{{ClassHash: "0x1", ContractName: "Token"}}
	opts := BatchOptions{Base: Params{Root: root}}

	summary, err := fastOrchestrator(newTestRunner(svc, nil)).Run(context.Background(), items, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Submitted)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, ItemPending, summary.Items[0].State)
	assert.NotEmpty(t, summary.Items[0].JobID)
}

func TestBatchInterItemDelay(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()

	items := []BatchItem{
		{ClassHash: "0x1", ContractName: "Token"},
		{ClassHash: "0x2", ContractName: "Vault"},
		{ClassHash: "0x3", ContractName: "Token"},
	}
	opts := BatchOptions{
		Base:           Params{Root: root},
		InterItemDelay: 20 * time.Millisecond,
	}

	start := time.Now()
	summary, err := fastOrchestrator(newTestRunner(svc, nil)).Run(context.Background(), items, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Submitted)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond,
		"two inter-item gaps for three items")
}

func TestBatchDryRunMakesNoNetworkCalls(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()

	items := []BatchItem{
		{ClassHash: "0x1", ContractName: "Token"},
		{ClassHash: "0x2", ContractName: "Vault"},
	}
	opts := BatchOptions{Base: Params{Root: root, DryRun: true}, Watch: true}

	summary, err := fastOrchestrator(newTestRunner(svc, nil)).Run(context.Background(), items, opts, nil)
	require.NoError(t, err)

	assert.Empty(t, svc.submissions)
	assert.Empty(t, svc.polls)
	assert.Zero(t, summary.Submitted)
	assert.Equal(t, 2, summary.Pending)
}

func TestRunnerDryRunIsIdempotent(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()
	runner := newTestRunner(svc, nil)

	p := Params{Root: root, ContractName: "Token", DryRun: true}

	first, err := runner.Prepare(context.Background(), p)
	require.NoError(t, err)
	second, err := runner.Prepare(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first.Request, second.Request, "unchanged tree yields byte-identical payloads")

	jobID, job, err := runner.Verify(context.Background(), p, true, nil)
	require.NoError(t, err)
	assert.Empty(t, jobID)
	assert.Nil(t, job)
	assert.Empty(t, svc.submissions, "dry run short-circuits before submission")
}

func TestRunnerSubmitSeedsHistory(t *testing.T) {
	root := writeFixtureProject(t)
	svc := newFakeService()
	store := newFakeStore()
	runner := newTestRunner(svc, store)

	p := Params{Root: root, ClassHash: "0x1", ContractName: "Token", Network: "mainnet"}
	jobID, job, err := runner.Verify(context.Background(), p, false, nil)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	assert.Nil(t, job)

	rec, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "Submitted", rec.Status)
	assert.Equal(t, "0x1", rec.ClassHash)
	assert.Equal(t, "mainnet", rec.Network)
	assert.Equal(t, "my_token", rec.PackageName)
	assert.Equal(t, "2.8.4", rec.ScarbVersion)
}
