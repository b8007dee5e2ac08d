package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/fylr/pkg/classifier"
	"github.com/sdejongh/fylr/pkg/extract"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/usage"
)

// fakeService returns canned stdout and records every request
type fakeService struct {
	stdout   string
	err      error
	requests []classifier.Request
	// render builds stdout from the request when set
	render func(classifier.Request) string
}

func (f *fakeService) Invoke(ctx context.Context, req classifier.Request) ([]string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	out := f.stdout
	if f.render != nil {
		out = f.render(req)
	}
	return strings.Split(out, "\n"), nil
}

type staticCredentials struct {
	value string
}

func (c staticCredentials) Name() string { return "TEST_API_KEY" }
func (c staticCredentials) Lookup() (string, bool) {
	return c.value, c.value != ""
}

func newTestDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "x")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, f := range files {
		p := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0644))
	}
	return dir
}

func newOrchestrator(svc classifier.Service, gov *usage.Governor, opts ...Option) *Orchestrator {
	opts = append([]Option{WithCredentials(staticCredentials{value: "sk-test"})}, opts...)
	return New(svc, gov, opts...)
}

func TestAnalyzeScenario(t *testing.T) {
	dir := newTestDir(t, "a.txt")
	src := filepath.Join(dir, "a.txt")

	svc := &fakeService{
		stdout: "TOKEN_USAGE:120\nRAW LLM RESPONSE:\n" +
			`{"files":[{"src_path":"` + filepath.ToSlash(src) + `","dst_path":"Docs/a.txt"}]}`,
	}
	gov := usage.NewGovernor(models.ModeOnline, 30000, 10)
	orch := newOrchestrator(svc, gov)

	before := gov.CheckLimits().TokenUsage
	p, err := orch.Analyze(context.Background(), dir, models.ModeOnline, AnalyzeOptions{})
	require.NoError(t, err)

	want := []plan.Item{{SrcPath: src, DstPath: "Docs/a.txt"}}
	if diff := cmp.Diff(want, p.Items); diff != "" {
		t.Errorf("plan items mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, p.Warnings)
	assert.Equal(t, before+120, gov.CheckLimits().TokenUsage)
	assert.Equal(t, int64(1), gov.CheckLimits().CallUsage)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, classifier.ActionOrganize, svc.requests[0].Action)
	assert.True(t, svc.requests[0].OnlineMode)
	assert.Equal(t, dir, svc.requests[0].Directory)
}

func TestAnalyzeOfflineDoesNotCount(t *testing.T) {
	dir := newTestDir(t, "a.txt")
	svc := &fakeService{stdout: "TOKEN_USAGE:120\nCALL_USAGE:1\n" + `{"files":[{"src_path":"a.txt","dst_path":"Docs/a.txt"}]}`}
	gov := usage.NewGovernor(models.ModeOffline, 30000, 10)

	// No credential needed offline
	orch := New(svc, gov, WithCredentials(staticCredentials{}))

	p, err := orch.Analyze(context.Background(), dir, models.ModeOffline, AnalyzeOptions{Specificity: 2})
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	assert.Equal(t, filepath.Join(dir, "a.txt"), p.Items[0].SrcPath)
	assert.Equal(t, models.UsageState{}, gov.Snapshot())
	assert.False(t, svc.requests[0].OnlineMode)
	assert.Equal(t, 2, svc.requests[0].Specificity)
}

func TestAnalyzeInvalidDirectory(t *testing.T) {
	svc := &fakeService{}
	orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0))

	file := filepath.Join(newTestDir(t, "a.txt"), "a.txt")
	for _, dir := range []string{"", filepath.Join(t.TempDir(), "missing"), file} {
		_, err := orch.Analyze(context.Background(), dir, models.ModeOnline, AnalyzeOptions{})
		assert.ErrorIs(t, err, models.ErrInvalidDirectory, dir)
	}
	assert.Empty(t, svc.requests)
}

func TestAnalyzeRateLimited(t *testing.T) {
	dir := newTestDir(t, "a.txt")

	t.Run("FailFast", func(t *testing.T) {
		svc := &fakeService{}
		gov := usage.NewGovernor(models.ModeOnline, 100, 10)
		gov.RecordTokens(100, false)

		orch := newOrchestrator(svc, gov, WithPolicy(models.PolicyFailFast))
		_, err := orch.Analyze(context.Background(), dir, models.ModeOnline, AnalyzeOptions{})
		assert.ErrorIs(t, err, models.ErrRateLimited)
		assert.Empty(t, svc.requests)
	})

	t.Run("FallbackOffline", func(t *testing.T) {
		svc := &fakeService{stdout: `{"files":[{"src_path":"a.txt","dst_path":"Docs/a.txt"}]}`}
		gov := usage.NewGovernor(models.ModeOnline, 100, 1)
		gov.RecordCall(false)

		// Missing credential is fine once forced offline
		orch := New(svc, gov, WithCredentials(staticCredentials{}), WithPolicy(models.PolicyFallbackOffline))

		var events []Event
		orch.Subscribe(func(ev Event) { events = append(events, ev) })

		p, err := orch.Analyze(context.Background(), dir, models.ModeOnline, AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, p.Len())
		assert.Equal(t, models.ModeOffline, orch.Mode())
		assert.False(t, svc.requests[0].OnlineMode)

		require.Len(t, events, 1)
		assert.Equal(t, EventModeSwitched, events[0].Type)
		assert.Equal(t, models.ModeOffline, events[0].Mode)
		assert.False(t, events[0].Limits.CanProceed)
		assert.Equal(t, int64(1), gov.CheckLimits().CallUsage)
	})
}

func TestAnalyzeMissingCredential(t *testing.T) {
	svc := &fakeService{}
	orch := New(svc, usage.NewGovernor(models.ModeOnline, 0, 0), WithCredentials(staticCredentials{}))

	_, err := orch.Analyze(context.Background(), newTestDir(t, "a.txt"), models.ModeOnline, AnalyzeOptions{})
	assert.ErrorIs(t, err, models.ErrMissingCredential)
	assert.Contains(t, err.Error(), "TEST_API_KEY")
	assert.Empty(t, svc.requests)
}

func TestAnalyzeServiceFailure(t *testing.T) {
	cause := &classifier.ProcessError{Script: "organize.py", ExitCode: 1, Stderr: "boom"}
	svc := &fakeService{err: cause}
	orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0))

	_, err := orch.Analyze(context.Background(), newTestDir(t, "a.txt"), models.ModeOnline, AnalyzeOptions{})
	assert.ErrorIs(t, err, models.ErrServiceFailure)

	var procErr *classifier.ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, "boom", procErr.Stderr)
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	for _, stdout := range []string{
		"Traceback (most recent call last):\nKeyError: 'files'",
		"RAW LLM RESPONSE:\nI could not decide.",
		`{"result": "no files key"}`,
	} {
		svc := &fakeService{stdout: stdout}
		orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0))

		_, err := orch.Analyze(context.Background(), newTestDir(t, "a.txt"), models.ModeOnline, AnalyzeOptions{})
		assert.ErrorIs(t, err, models.ErrMalformedResponse, stdout)
	}
}

func TestAnalyzeRequireMarker(t *testing.T) {
	svc := &fakeService{stdout: `{"files":[{"src_path":"a.txt","dst_path":"Docs/a.txt"}]}`}
	orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0),
		WithExtractOptions(extract.Options{RequireMarker: true}))

	_, err := orch.Analyze(context.Background(), newTestDir(t, "a.txt"), models.ModeOnline, AnalyzeOptions{})
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestAnalyzeDropsInvalidEntries(t *testing.T) {
	dir := newTestDir(t, "a.txt", "b.txt", "c.txt", "sub/d.txt")
	outside := newTestDir(t, "e.txt")

	svc := &fakeService{stdout: "RAW LLM RESPONSE:\n" + `{"files":[` +
		`{"src_path":"a.txt","dst_path":"Docs/a.txt"},` +
		`{"src_path":"b.txt"},` +
		`{"dst_path":"Docs/x.txt"},` +
		`{"src_path":"missing.txt","dst_path":"Docs/missing.txt"},` +
		`{"src_path":"sub","dst_path":"Docs/sub"},` +
		`{"src_path":"` + filepath.ToSlash(filepath.Join(outside, "e.txt")) + `","dst_path":"Docs/e.txt"},` +
		`{"src_path":"c.txt","dst_path":"../c.txt"},` +
		`{"src_path":"a.txt","dst_path":"Other/a.txt"},` +
		`{"src_path":42,"dst_path":"Docs/n.txt"},` +
		`{"src_path":"sub/d.txt","dst_path":"` + filepath.ToSlash(filepath.Join(dir, "Text", "d.txt")) + `"},` +
		`{"src_path":"c.txt","dst_path":"./Text//c.txt"}` +
		`]}`}

	orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0))
	var warnings []string
	orch.Subscribe(func(ev Event) {
		if ev.Type == EventWarning {
			warnings = append(warnings, ev.Message)
		}
	})

	p, err := orch.Analyze(context.Background(), dir, models.ModeOnline, AnalyzeOptions{})
	require.NoError(t, err)

	want := []plan.Item{
		{SrcPath: filepath.Join(dir, "a.txt"), DstPath: "Docs/a.txt"},
		{SrcPath: filepath.Join(dir, "sub", "d.txt"), DstPath: "Text/d.txt"},
		{SrcPath: filepath.Join(dir, "c.txt"), DstPath: "Text/c.txt"},
	}
	if diff := cmp.Diff(want, p.Items); diff != "" {
		t.Errorf("plan items mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, p.Warnings, 8)
	assert.Equal(t, p.Warnings, warnings)
}

func TestAnalyzeSignalsDuringRun(t *testing.T) {
	dir := newTestDir(t, "a.txt")
	svc := &fakeService{stdout: "CALL_USAGE:3\nTOKEN_USAGE:50\nTOKEN_LIMIT_REACHED:30000\nMODE_SWITCH:offline\nTOKEN_USAGE:999\n" +
		`{"files":[{"src_path":"a.txt","dst_path":"a.txt"}]}`}
	gov := usage.NewGovernor(models.ModeOnline, 30000, 10)
	orch := newOrchestrator(svc, gov)

	var types []EventType
	unsubscribe := orch.Subscribe(func(ev Event) { types = append(types, ev.Type) })

	_, err := orch.Analyze(context.Background(), dir, models.ModeOnline, AnalyzeOptions{})
	require.NoError(t, err)

	// One reserved call plus two more reported; tokens after the switch are not counted
	assert.Equal(t, models.UsageState{TokenCount: 50, CallCount: 3}, gov.Snapshot())
	assert.Equal(t, []EventType{EventLimitReached, EventModeSwitched}, types)
	assert.Equal(t, models.ModeOffline, orch.Mode())

	unsubscribe()
	_, err = orch.Analyze(context.Background(), dir, models.ModeOffline, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Len(t, types, 2)
}

func TestAnalyzeHugeCallUsage(t *testing.T) {
	dir := newTestDir(t, "a.txt")
	svc := &fakeService{stdout: "CALL_USAGE:9000000000000000000\n" +
		`{"files":[{"src_path":"a.txt","dst_path":"Docs/a.txt"}]}`}
	gov := usage.NewGovernor(models.ModeOnline, 30000, 10)
	orch := newOrchestrator(svc, gov)

	p, err := orch.Analyze(context.Background(), dir, models.ModeOnline, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	limits := gov.CheckLimits()
	assert.Equal(t, int64(9000000000000000000), limits.CallUsage)
	assert.False(t, limits.CanProceed)
}

func TestGenerateNames(t *testing.T) {
	files := []models.FileEntry{
		{Name: "IMG_001.jpg", Path: "/tmp/x/IMG_001.jpg"},
		{Name: "scan.pdf", Path: "/tmp/x/scan.pdf"},
	}

	t.Run("Success", func(t *testing.T) {
		svc := &fakeService{stdout: "TOKEN_USAGE:40\n" +
			`{"success": true, "generated_names": {"IMG_001.jpg": "beach_sunset.jpg", "scan.pdf": "invoice_2023.pdf", "other.txt": "x.txt"}}`}
		gov := usage.NewGovernor(models.ModeOnline, 0, 0)
		orch := newOrchestrator(svc, gov)

		names, err := orch.GenerateNames(context.Background(), files, models.ModeOnline)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"IMG_001.jpg": "beach_sunset.jpg",
			"scan.pdf":    "invoice_2023.pdf",
		}, names)
		assert.Equal(t, int64(40), gov.Snapshot().TokenCount)

		require.Len(t, svc.requests, 1)
		assert.Equal(t, classifier.ActionGenerate, svc.requests[0].Action)
		assert.Equal(t, models.Refs(files), svc.requests[0].Files)
	})

	t.Run("ReportedFailure", func(t *testing.T) {
		svc := &fakeService{stdout: `{"success": false, "error": "quota exhausted"}`}
		orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0))

		_, err := orch.GenerateNames(context.Background(), files, models.ModeOnline)
		assert.ErrorIs(t, err, models.ErrServiceFailure)
		assert.Contains(t, err.Error(), "quota exhausted")
	})

	t.Run("MissingSuccess", func(t *testing.T) {
		svc := &fakeService{stdout: `{"generated_names": {}}`}
		orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0))

		_, err := orch.GenerateNames(context.Background(), files, models.ModeOnline)
		assert.ErrorIs(t, err, models.ErrMalformedResponse)
	})

	t.Run("MissingCredentialNoSpawn", func(t *testing.T) {
		svc := &fakeService{}
		orch := New(svc, usage.NewGovernor(models.ModeOnline, 0, 0), WithCredentials(staticCredentials{}))

		_, err := orch.GenerateNames(context.Background(), files, models.ModeOnline)
		assert.ErrorIs(t, err, models.ErrMissingCredential)
		assert.Empty(t, svc.requests)
	})

	t.Run("NoFiles", func(t *testing.T) {
		svc := &fakeService{}
		orch := newOrchestrator(svc, usage.NewGovernor(models.ModeOnline, 0, 0))

		_, err := orch.GenerateNames(context.Background(), nil, models.ModeOnline)
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
		assert.Empty(t, svc.requests)
	})
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("FYLR_TEST_KEY", "  ")
	c := NewEnvCredentials("FYLR_TEST_KEY")
	_, ok := c.Lookup()
	assert.False(t, ok, "blank value is not a credential")

	t.Setenv("FYLR_TEST_KEY", "sk-abc")
	v, ok := c.Lookup()
	assert.True(t, ok)
	assert.Equal(t, "sk-abc", v)

	assert.Equal(t, DefaultCredentialEnv, NewEnvCredentials("").Name())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FYLR_ENV_FILE_KEY=from-file\nFYLR_ENV_KEPT=from-file\n"), 0600))

	t.Setenv("FYLR_ENV_KEPT", "from-env")
	t.Setenv("FYLR_ENV_FILE_KEY", "")
	os.Unsetenv("FYLR_ENV_FILE_KEY")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("FYLR_ENV_FILE_KEY"))
	assert.Equal(t, "from-env", os.Getenv("FYLR_ENV_KEPT"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}
