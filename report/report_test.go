package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goforj/cacheprobe/connect"
	"github.com/goforj/cacheprobe/connspec"
	"github.com/goforj/cacheprobe/probe"
	"github.com/goforj/cacheprobe/report"
)

func passingOutcomes() []probe.Outcome {
	return []probe.Outcome{
		{Operation: probe.OpSet, Success: true, Elapsed: 2 * time.Millisecond},
		{Operation: probe.OpGet, Success: true, Value: probe.DefaultValue, Elapsed: time.Millisecond},
		{Operation: probe.OpDelete, Success: true, Elapsed: time.Millisecond},
		{Operation: probe.OpFlexibleRead, Success: true, Value: "Generated value #1", Generations: 1, Elapsed: 6 * time.Millisecond},
	}
}

func TestRecordClassifiesErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		kind report.ErrorKind
		op   probe.Operation
	}{
		{"config", &connspec.ConfigError{Field: connspec.KeyPort, Message: "out of range"}, report.KindConfig, ""},
		{"timeout", &connect.ConnectionError{Kind: connect.KindTimeout, Message: "ping"}, report.KindConnectTimeout, ""},
		{"auth", &connect.ConnectionError{Kind: connect.KindAuthRejected, Message: "ping"}, report.KindConnectAuthRejected, ""},
		{"unreachable", &connect.ConnectionError{Kind: connect.KindUnreachable, Message: "ping"}, report.KindConnectUnreachable, ""},
		{"protocol", &connect.ConnectionError{Kind: connect.KindProtocolMismatch, Message: "ping"}, report.KindConnectProtocolMismatch, ""},
		{"rejected", &probe.ProbeError{Operation: probe.OpSet, Kind: probe.KindStoreRejected, Message: "set"}, report.KindProbeStoreRejected, probe.OpSet},
		{"mismatch", &probe.ProbeError{Operation: probe.OpGet, Kind: probe.KindValueMismatch, Message: "get"}, report.KindProbeValueMismatch, probe.OpGet},
		{"unexpected", &probe.ProbeError{Operation: probe.OpFlexibleRead, Kind: probe.KindUnexpectedException, Message: "boom"}, report.KindProbeUnexpectedException, probe.OpFlexibleRead},
		{"wrapped", fmt.Errorf("pattern 2: %w", &connect.ConnectionError{Kind: connect.KindTimeout}), report.KindConnectTimeout, ""},
		{"unknown", errors.New("surprise"), report.KindProbeUnexpectedException, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := report.NewRecorder()
			res := rec.Record("p", nil, tc.err)
			require.Equal(t, report.StatusFailure, res.Status)
			require.Nil(t, res.Success)
			require.NotNil(t, res.Failure)
			require.Equal(t, tc.kind, res.Failure.Kind)
			require.Equal(t, tc.op, res.Failure.Operation)
			require.NotEmpty(t, res.Failure.Message)
		})
	}
}

func TestRecordSuccessSummary(t *testing.T) {
	t.Parallel()

	rec := report.NewRecorder()
	res := rec.Record("Pattern 1", passingOutcomes(), nil)

	require.True(t, res.Succeeded())
	require.Nil(t, res.Failure)
	require.Equal(t, "Generated value #1", res.Success.Value)
	require.Equal(t, 1, res.Success.Generations)
	require.Equal(t, 10*time.Millisecond, res.Success.Elapsed)
	require.Len(t, res.Outcomes, 4)
}

func TestRecordKeepsPartialOutcomes(t *testing.T) {
	t.Parallel()

	rec := report.NewRecorder()
	partial := passingOutcomes()[:2]
	res := rec.Record("p", partial, &probe.ProbeError{Operation: probe.OpDelete, Kind: probe.KindStoreRejected})

	require.Len(t, res.Outcomes, 2)
	partial[0].Value = "mutated"
	require.Empty(t, rec.Results()[0].Outcomes[0].Value)
}

func TestRecorderPreservesOrder(t *testing.T) {
	t.Parallel()

	rec := report.NewRecorder()
	rec.Record("first", passingOutcomes(), nil)
	rec.Record("second", nil, &connect.ConnectionError{Kind: connect.KindUnreachable})
	rec.Record("third", passingOutcomes(), nil)

	results := rec.Results()
	require.Equal(t, []string{"first", "second", "third"}, []string{results[0].Pattern, results[1].Pattern, results[2].Pattern})

	results[0].Pattern = "changed"
	require.Equal(t, "first", rec.Results()[0].Pattern)
}

func TestWithDiagnostics(t *testing.T) {
	t.Parallel()

	masters := []string{"10.0.0.1:6379", "10.0.0.2:6379"}
	rec := report.NewRecorder()
	res := rec.Record("cluster", passingOutcomes(), nil, report.WithDiagnostics(connect.Diagnostics{
		Topology: connspec.TopologyCluster,
		Masters:  masters,
	}))
	masters[0] = "mutated"

	require.NotNil(t, res.Diagnostics)
	require.Equal(t, "10.0.0.1:6379", res.Diagnostics.Masters[0])
}

func TestTallyOf(t *testing.T) {
	t.Parallel()

	rec := report.NewRecorder()
	rec.Record("a", passingOutcomes(), nil)
	rec.Record("b", passingOutcomes(), nil)
	rec.Record("c", nil, errors.New("x"))
	rec.Record("d", passingOutcomes(), nil)

	tally := report.TallyOf(rec.Results())
	require.Equal(t, report.Tally{Succeeded: 3, Total: 4}, tally)
	require.False(t, tally.AllSucceeded())
	require.True(t, report.TallyOf(nil).AllSucceeded())
}

func sampleReport() report.Report {
	rec := report.NewRecorder()
	rec.Record("Pattern 1: goredis + single", passingOutcomes(), nil)
	rec.Record("Pattern 2: goredis + cluster", nil, &probe.ProbeError{
		Operation: probe.OpGet,
		Kind:      probe.KindValueMismatch,
		Message:   "read back differs",
	})
	return report.Report{
		RunID:     "run-1",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Endpoint:  "127.0.0.1:6379",
		Results:   rec.Results(),
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleReport()))
	out := buf.String()

	require.Contains(t, out, "Endpoint: 127.0.0.1:6379\n")
	require.Contains(t, out, "Timestamp: 2026-01-02 03:04:05\n")
	require.Contains(t, out, "✓ Pattern 1: goredis + single: SUCCESS\n   Time: 0.010s\n")
	require.Contains(t, out, "   Callback called: 1 time(s)\n")
	require.Contains(t, out, "✗ Pattern 2: goredis + cluster: FAILURE\n   Error: ProbeError.ValueMismatch\n   Operation: get\n")
	require.True(t, strings.HasSuffix(out, "Total: 1/2 patterns succeeded\n"))
	require.Less(t, strings.Index(out, "Pattern 1"), strings.Index(out, "Pattern 2"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestRenderWriteError(t *testing.T) {
	t.Parallel()

	require.EqualError(t, report.Render(failingWriter{}, sampleReport()), "closed pipe")
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.RenderJSON(&buf, sampleReport()))

	var decoded struct {
		RunID   string `json:"run_id"`
		Results []struct {
			Pattern string `json:"pattern"`
			Status  string `json:"status"`
			Failure *struct {
				Kind string `json:"kind"`
			} `json:"failure"`
		} `json:"results"`
		Tally report.Tally `json:"tally"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Results, 2)
	require.Equal(t, "success", decoded.Results[0].Status)
	require.Equal(t, "ProbeError.ValueMismatch", decoded.Results[1].Failure.Kind)
	require.Equal(t, report.Tally{Succeeded: 1, Total: 2}, decoded.Tally)
}

func TestRenderJSONEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.RenderJSON(&buf, report.Report{RunID: "empty"}))
	require.Contains(t, buf.String(), `"results": []`)
}
