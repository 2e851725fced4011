// Package taxonomy defines the failure classification system, the
// platform error-code table, and the result types shared by the
// orchestrator and the report writers.
package taxonomy

import "time"

// Kind classifies why a test case failed (or was skipped). An empty
// Kind means the case had no defect.
type Kind string

// Failure kinds. Each is local to a single case; none of them aborts
// the surrounding run.
const (
	// FixtureSetupFailure: the layout or success phase reported a
	// nonzero error, so the fixture the failure phase depends on was
	// never established.
	FixtureSetupFailure Kind = "FixtureSetupFailure"

	// CorruptionInjectionFailure: the mangle phase itself reported a
	// nonzero error.
	CorruptionInjectionFailure Kind = "CorruptionInjectionFailure"

	// DetectionMismatch: the failure phase reported an error code
	// other than the platform's illegal-byte-sequence code while a
	// real checksum was active.
	DetectionMismatch Kind = "DetectionMismatch"

	// PhaseCountMismatch: the run report did not contain exactly the
	// four expected named phases.
	PhaseCountMismatch Kind = "PhaseCountMismatch"

	// EnvironmentUnmet: a host requirement predicate failed; the case
	// is skipped, not failed.
	EnvironmentUnmet Kind = "EnvironmentUnmet"

	// SubprocessTimeout: the subject was forcibly terminated after
	// the wall-clock bound.
	SubprocessTimeout Kind = "SubprocessTimeout"

	// ResultParseFailure: the structured report was absent or
	// malformed.
	ResultParseFailure Kind = "ResultParseFailure"

	// MissingFixture: a read-class case ran without its write-class
	// prerequisite in the same run.
	MissingFixture Kind = "MissingFixture"

	// VerifyFailure: a plain (non fault-injection) case reported an
	// unexpected exit or job error.
	VerifyFailure Kind = "VerifyFailure"
)

// Status is the tally bucket a finished case lands in.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CaseResult records the outcome of one test case.
type CaseResult struct {
	CaseID    int           `json:"case_id"`
	Matrix    string        `json:"matrix"` // "verify" or "fault"
	Direction string        `json:"direction,omitempty"`
	Checksum  string        `json:"checksum"`
	Mangle    string        `json:"mangle,omitempty"`
	Status    Status        `json:"status"`
	Kind      Kind          `json:"kind,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Artifacts string        `json:"artifacts,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Tally accumulates per-case outcomes across a run.
type Tally struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Add moves one result into its tally bucket.
func (t *Tally) Add(status Status) {
	switch status {
	case StatusPassed:
		t.Passed++
	case StatusSkipped:
		t.Skipped++
	default:
		t.Failed++
	}
}

// RunSummary is the top-level record of one harness run.
type RunSummary struct {
	RunID   string       `json:"run_id"`
	FioPath string       `json:"fio_path"`
	Results []CaseResult `json:"results"`
	Tally   Tally        `json:"tally"`
}
