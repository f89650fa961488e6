package report

import (
	"errors"
	"time"

	"github.com/goforj/cacheprobe/connect"
	"github.com/goforj/cacheprobe/connspec"
	"github.com/goforj/cacheprobe/probe"
)

// ErrorKind is the closed failure taxonomy of a pattern.
type ErrorKind string

const (
	KindConfig                   ErrorKind = "ConfigError"
	KindConnectTimeout           ErrorKind = "ConnectionError.Timeout"
	KindConnectAuthRejected      ErrorKind = "ConnectionError.AuthRejected"
	KindConnectUnreachable       ErrorKind = "ConnectionError.Unreachable"
	KindConnectProtocolMismatch  ErrorKind = "ConnectionError.ProtocolMismatch"
	KindProbeStoreRejected       ErrorKind = "ProbeError.StoreRejected"
	KindProbeValueMismatch       ErrorKind = "ProbeError.ValueMismatch"
	KindProbeUnexpectedException ErrorKind = "ProbeError.UnexpectedException"
)

// Status of a recorded pattern.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Success details a passing pattern.
type Success struct {
	Value       string        `json:"value"`
	Elapsed     time.Duration `json:"elapsed"`
	Generations int           `json:"generations"`
}

// Failure details a failing pattern. Operation is empty for config and
// connection failures.
type Failure struct {
	Kind      ErrorKind       `json:"kind"`
	Operation probe.Operation `json:"operation,omitempty"`
	Message   string          `json:"message"`
}

// Result is the recorded outcome of one pattern.
type Result struct {
	Pattern     string               `json:"pattern"`
	Status      Status               `json:"status"`
	Success     *Success             `json:"success,omitempty"`
	Failure     *Failure             `json:"failure,omitempty"`
	Outcomes    []probe.Outcome      `json:"outcomes,omitempty"`
	Diagnostics *connect.Diagnostics `json:"diagnostics,omitempty"`
}

// Succeeded reports whether the pattern passed.
func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

// RecordOption decorates a Result before it is appended.
type RecordOption func(*Result)

// WithDiagnostics attaches connection diagnostics.
func WithDiagnostics(d connect.Diagnostics) RecordOption {
	return func(r *Result) {
		d.Seeds = append([]string(nil), d.Seeds...)
		d.Masters = append([]string(nil), d.Masters...)
		r.Diagnostics = &d
	}
}

// Recorder accumulates results in execution order. It is not safe for
// concurrent use; patterns run sequentially.
type Recorder struct {
	results []Result
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record classifies err and appends the pattern's result. A nil err records
// a success built from the flexible read outcome.
func (r *Recorder) Record(pattern string, outcomes []probe.Outcome, err error, opts ...RecordOption) Result {
	res := Result{
		Pattern:  pattern,
		Outcomes: append([]probe.Outcome(nil), outcomes...),
	}
	if err != nil {
		res.Status = StatusFailure
		res.Failure = classify(err)
	} else {
		res.Status = StatusSuccess
		res.Success = summarize(outcomes)
	}
	for _, opt := range opts {
		opt(&res)
	}
	r.results = append(r.results, res)
	return res
}

// Results returns a copy of the recorded results.
func (r *Recorder) Results() []Result {
	return append([]Result(nil), r.results...)
}

func summarize(outcomes []probe.Outcome) *Success {
	s := &Success{}
	for _, o := range outcomes {
		s.Elapsed += o.Elapsed
		if o.Operation == probe.OpFlexibleRead {
			s.Value = o.Value
			s.Generations = o.Generations
		}
	}
	return s
}

func classify(err error) *Failure {
	var configErr *connspec.ConfigError
	if errors.As(err, &configErr) {
		return &Failure{Kind: KindConfig, Message: configErr.Error()}
	}
	var connErr *connect.ConnectionError
	if errors.As(err, &connErr) {
		return &Failure{Kind: connectionKind(connErr.Kind), Message: connErr.Error()}
	}
	var probeErr *probe.ProbeError
	if errors.As(err, &probeErr) {
		return &Failure{Kind: probeKind(probeErr.Kind), Operation: probeErr.Operation, Message: probeErr.Error()}
	}
	return &Failure{Kind: KindProbeUnexpectedException, Message: err.Error()}
}

func connectionKind(k connect.Kind) ErrorKind {
	switch k {
	case connect.KindTimeout:
		return KindConnectTimeout
	case connect.KindAuthRejected:
		return KindConnectAuthRejected
	case connect.KindProtocolMismatch:
		return KindConnectProtocolMismatch
	default:
		return KindConnectUnreachable
	}
}

func probeKind(k probe.Kind) ErrorKind {
	switch k {
	case probe.KindStoreRejected:
		return KindProbeStoreRejected
	case probe.KindValueMismatch:
		return KindProbeValueMismatch
	default:
		return KindProbeUnexpectedException
	}
}
