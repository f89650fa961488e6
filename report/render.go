package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Report is everything one harness run produced.
type Report struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Endpoint  string    `json:"endpoint"`
	Results   []Result  `json:"results"`
}

// Tally counts passing patterns.
type Tally struct {
	Succeeded int `json:"succeeded"`
	Total     int `json:"total"`
}

// AllSucceeded reports whether every pattern passed. An empty run passes.
func (t Tally) AllSucceeded() bool { return t.Succeeded == t.Total }

// TallyOf counts results.
func TallyOf(results []Result) Tally {
	t := Tally{Total: len(results)}
	for _, r := range results {
		if r.Succeeded() {
			t.Succeeded++
		}
	}
	return t
}

var rule = strings.Repeat("=", 70)

// Render writes the human-readable summary, one block per pattern in
// execution order, followed by the tally line.
func Render(w io.Writer, rep Report) error {
	p := &printer{w: w}
	p.printf("=== Cache flexible() - %d Pattern Test ===\n", len(rep.Results))
	p.printf("Endpoint: %s\n", rep.Endpoint)
	p.printf("Run: %s\n", rep.RunID)
	p.printf("Timestamp: %s\n\n", rep.StartedAt.Format(time.DateTime))

	p.printf("%s\nSUMMARY\n%s\n\n", rule, rule)
	for _, r := range rep.Results {
		if r.Succeeded() {
			p.printf("✓ %s: SUCCESS\n", r.Pattern)
			p.printf("   Time: %ss\n", seconds(r.Success.Elapsed))
			if r.Success.Value != "" {
				p.printf("   Result: %s\n", r.Success.Value)
				p.printf("   Callback called: %d time(s)\n", r.Success.Generations)
			}
		} else {
			p.printf("✗ %s: FAILURE\n", r.Pattern)
			p.printf("   Error: %s\n", r.Failure.Kind)
			if r.Failure.Operation != "" {
				p.printf("   Operation: %s\n", r.Failure.Operation)
			}
			p.printf("   Message: %s\n", r.Failure.Message)
		}
		if d := r.Diagnostics; d != nil && len(d.Masters) > 0 {
			p.printf("   Masters: %s\n", strings.Join(d.Masters, ", "))
		}
		p.printf("\n")
	}

	t := TallyOf(rep.Results)
	p.printf("Total: %d/%d patterns succeeded\n", t.Succeeded, t.Total)
	return p.err
}

// RenderJSON writes the report and its tally as one indented JSON document.
func RenderJSON(w io.Writer, rep Report) error {
	if rep.Results == nil {
		rep.Results = []Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Report
		Tally Tally `json:"tally"`
	}{rep, TallyOf(rep.Results)})
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
