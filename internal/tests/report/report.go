// Package report aggregates classified test results for a run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/anvilbuild/anvil/internal/tests/result"
)

// SingleResult ties one test result to its owning suite.
type SingleResult struct {
	Suite  string
	Result result.TestResult
}

// Report stores the results of a test run: any number of tests, in any
// number of unique configurations. It is mutated only by the single loop
// draining the work queue.
type Report struct {
	Results []SingleResult
}

// New creates an empty Report.
func New() *Report {
	return &Report{}
}

// Add records a result against its suite. Discovery only ever grows the
// result set; nothing is replaced.
func (r *Report) Add(suite string, res result.TestResult) {
	r.Results = append(r.Results, SingleResult{Suite: suite, Result: res})
}

// BySuite regroups the results per suite.
func (r *Report) BySuite() map[string]*Report {
	out := make(map[string]*Report)
	for _, sr := range r.Results {
		suite, ok := out[sr.Suite]
		if !ok {
			suite = New()
			out[sr.Suite] = suite
		}
		suite.Add(sr.Suite, sr.Result)
	}
	return out
}

// Successful reports whether the run had no failures. Skips and expected
// failures do not count against success; unexpected successes do.
func (r *Report) Successful() bool {
	return r.NumFailed() == 0
}

// NumTests is the total number of recorded results.
func (r *Report) NumTests() int { return len(r.Results) }

// NumFailed counts failing results.
func (r *Report) NumFailed() int { return len(r.AllFailed()) }

// NumPassed counts passing results.
func (r *Report) NumPassed() int { return len(r.AllPassed()) }

// NumSkipped counts results that neither passed nor failed.
func (r *Report) NumSkipped() int { return len(r.AllSkipped()) }

// AllFailed returns the failing results.
func (r *Report) AllFailed() []SingleResult {
	var out []SingleResult
	for _, sr := range r.Results {
		if sr.Result.Failed() {
			out = append(out, sr)
		}
	}
	return out
}

// AllPassed returns the passing results.
func (r *Report) AllPassed() []SingleResult {
	var out []SingleResult
	for _, sr := range r.Results {
		if sr.Result.Passed() {
			out = append(out, sr)
		}
	}
	return out
}

// AllSkipped returns the results that neither passed nor failed.
func (r *Report) AllSkipped() []SingleResult {
	var out []SingleResult
	for _, sr := range r.Results {
		if !sr.Result.Passed() && !sr.Result.Failed() {
			out = append(out, sr)
		}
	}
	return out
}

// RemoveAllFailingFlaky removes failing results the filter marks as flaky
// and returns them so the caller can rerun those tests.
func (r *Report) RemoveAllFailingFlaky(isFlaky func(result.TestResult) bool) []SingleResult {
	var kept, flaky []SingleResult
	for _, sr := range r.Results {
		if sr.Result.Failed() && isFlaky(sr.Result) {
			flaky = append(flaky, sr)
		} else {
			kept = append(kept, sr)
		}
	}
	r.Results = kept
	return flaky
}

// snapshot is the serialized form of one result, for offline inspection.
type snapshot struct {
	Suite   string `json:"suite"`
	Test    string `json:"test"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

func outcomeName(res result.TestResult) string {
	switch res.(type) {
	case result.Success:
		return "pass"
	case result.Failure:
		return "fail"
	case result.Skipped:
		return "skip"
	case result.ExpectedFailure:
		return "known-fail"
	case result.UnexpectedSuccess:
		return "unexpected-pass"
	}
	return "unknown"
}

// Write serializes the report as JSON.
func (r *Report) Write(w io.Writer) error {
	snapshots := make([]snapshot, 0, len(r.Results))
	for _, sr := range r.Results {
		snapshots = append(snapshots, snapshot{
			Suite:   sr.Suite,
			Test:    sr.Result.Test().String(),
			Outcome: outcomeName(sr.Result),
			Detail:  sr.Result.String(),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshots)
}

// WriteFile serializes the report to the given path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write build report: %w", err)
	}
	defer f.Close()
	return r.Write(f)
}
