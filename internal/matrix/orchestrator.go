package matrix

import (
	"context"
	"errors"
	"fmt"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vincentkfu/fioverify/internal/fixture"
	"github.com/vincentkfu/fioverify/internal/mangle"
	"github.com/vincentkfu/fioverify/internal/phase"
	"github.com/vincentkfu/fioverify/internal/runner"
	"github.com/vincentkfu/fioverify/internal/taxonomy"
)

// Invoker runs one subject invocation. *runner.Runner is the real
// implementation; tests substitute their own.
type Invoker interface {
	Run(ctx context.Context, inv *runner.Invocation) (*runner.Result, error)
}

// Orchestrator drives both matrices in fixed sequence: the
// direction-sensitive verify matrix first, then the fault-injection
// matrix. Execution is strictly sequential; cancellation is checked
// only between cases.
type Orchestrator struct {
	Invoker     Invoker
	FioPath     string
	Root        string
	Templates   []Template
	Checksums   []Checksum
	MangleModes []mangle.Mode
	Skip        []int
	RunOnly     []int
	SkipReqs    bool
	Env         Environment
	EILSEQ      int
	Logger      *charmlog.Logger

	registry *fixture.Registry
}

// Run iterates the full parameter space and returns the aggregated
// summary. An operator interrupt (ctx cancellation) stops iteration
// at the next case boundary; the partial summary is still returned.
func (o *Orchestrator) Run(ctx context.Context) *taxonomy.RunSummary {
	o.registry = fixture.NewRegistry()
	summary := &taxonomy.RunSummary{
		RunID:   uuid.NewString(),
		FioPath: o.FioPath,
	}

	o.runVerifyMatrix(ctx, summary)
	o.runFaultMatrix(ctx, summary)

	return summary
}

// runVerifyMatrix walks DataDirection x Checksum. Iteration order
// puts every write-class combination before its read-class
// counterpart; the fixture registry additionally fail-fasts any case
// whose prerequisite is missing.
func (o *Orchestrator) runVerifyMatrix(ctx context.Context, summary *taxonomy.RunSummary) {
	for _, d := range Directions() {
		for _, cs := range o.Checksums {
			for _, tmpl := range o.Templates {
				if ctx.Err() != nil {
					if o.Logger != nil {
						o.Logger.Warn("interrupted, stopping at case boundary")
					}
					return
				}
				c := tmpl.VerifyCase(o.Root, d, cs)
				res := o.runVerifyCase(ctx, &c)
				summary.Results = append(summary.Results, res)
				summary.Tally.Add(res.Status)
			}
		}
	}
}

// runFaultMatrix walks MangleMode x Checksum, independent of the
// verify matrix.
func (o *Orchestrator) runFaultMatrix(ctx context.Context, summary *taxonomy.RunSummary) {
	for _, m := range o.MangleModes {
		for _, cs := range o.Checksums {
			for _, tmpl := range o.Templates {
				if ctx.Err() != nil {
					if o.Logger != nil {
						o.Logger.Warn("interrupted, stopping at case boundary")
					}
					return
				}
				c := tmpl.FaultCase(o.Root, m, cs)
				res := o.runFaultCase(ctx, &c)
				summary.Results = append(summary.Results, res)
				summary.Tally.Add(res.Status)
			}
		}
	}
}

// selected applies the run-only and skip lists.
func (o *Orchestrator) selected(id int) bool {
	if len(o.RunOnly) > 0 {
		for _, want := range o.RunOnly {
			if id == want {
				return true
			}
		}
		return false
	}
	for _, s := range o.Skip {
		if id == s {
			return false
		}
	}
	return true
}

// preflight handles the judgements shared by both matrices:
// selection, requirement predicates, and (for read-class cases) the
// fixture prerequisite. ok=false means the returned result is final.
func (o *Orchestrator) preflight(c *Case) (taxonomy.CaseResult, bool) {
	res := taxonomy.CaseResult{
		CaseID:    c.ID,
		Direction: string(c.Direction),
		Checksum:  string(c.Checksum),
		Mangle:    string(c.MangleMode),
		Artifacts: c.ArtifactDir,
	}
	if c.MangleMode != "" {
		res.Matrix = "fault"
	} else {
		res.Matrix = "verify"
	}

	if !o.selected(c.ID) {
		res.Status = taxonomy.StatusSkipped
		res.Detail = "deselected"
		return res, false
	}

	if !o.SkipReqs {
		for _, req := range c.Requirements {
			met, reason := req.Check(o.Env)
			if !met {
				res.Status = taxonomy.StatusSkipped
				res.Kind = taxonomy.EnvironmentUnmet
				res.Detail = fmt.Sprintf("%s: %s", req.Name, reason)
				return res, false
			}
		}
	}

	if c.Direction.ReadOnly() && c.MangleMode == "" {
		dir, ok := o.registry.Lookup(string(c.Direction), string(c.Checksum), c.ID)
		if !ok {
			res.Status = taxonomy.StatusFailed
			res.Kind = taxonomy.MissingFixture
			res.Detail = "write-class prerequisite did not complete in this run"
			return res, false
		}
		c.FixtureDir = dir
	}

	return res, true
}

// classifyRunError maps runner errors onto the failure taxonomy.
func classifyRunError(err error) (taxonomy.Kind, string) {
	switch {
	case errors.Is(err, runner.ErrTimeout):
		return taxonomy.SubprocessTimeout, err.Error()
	case errors.Is(err, runner.ErrParse):
		return taxonomy.ResultParseFailure, err.Error()
	}
	return taxonomy.VerifyFailure, err.Error()
}

func (o *Orchestrator) runVerifyCase(ctx context.Context, c *Case) taxonomy.CaseResult {
	res, ok := o.preflight(c)
	if !ok {
		o.logResult(res)
		return res
	}

	start := time.Now()
	run, err := o.Invoker.Run(ctx, c.Invocation())
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = taxonomy.StatusFailed
		res.Kind, res.Detail = classifyRunError(err)
		o.logResult(res)
		return res
	}

	// ExactMatch demands a clean subject exit; NonzeroExitAllowed
	// defers to the stanza errors alone.
	if c.Criterion == ExactMatch && run.ExitCode != 0 {
		res.Status = taxonomy.StatusFailed
		res.Kind = taxonomy.VerifyFailure
		res.Detail = fmt.Sprintf("subject exited %d", run.ExitCode)
		o.logResult(res)
		return res
	}
	for _, p := range run.Report.Phases {
		if p.Error != 0 {
			res.Status = taxonomy.StatusFailed
			res.Kind = taxonomy.VerifyFailure
			res.Detail = fmt.Sprintf("stanza %s reported error %d", p.Name, p.Error)
			o.logResult(res)
			return res
		}
	}

	res.Status = taxonomy.StatusPassed
	if !c.Direction.ReadOnly() {
		// A completed write-class case publishes its artifacts for
		// the read-class counterpart.
		o.registry.Record(fixture.Key{
			Direction: string(c.Direction),
			Checksum:  string(c.Checksum),
			ID:        c.ID,
		}, c.ArtifactDir)
	}
	o.logResult(res)
	return res
}

func (o *Orchestrator) runFaultCase(ctx context.Context, c *Case) taxonomy.CaseResult {
	res, ok := o.preflight(c)
	if !ok {
		o.logResult(res)
		return res
	}

	start := time.Now()
	run, err := o.Invoker.Run(ctx, c.FaultInvocation())
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = taxonomy.StatusFailed
		res.Kind, res.Detail = classifyRunError(err)
		o.logResult(res)
		return res
	}

	if c.Criterion == ExactMatch && run.ExitCode != 0 {
		res.Status = taxonomy.StatusFailed
		res.Kind = taxonomy.VerifyFailure
		res.Detail = fmt.Sprintf("subject exited %d", run.ExitCode)
		o.logResult(res)
		return res
	}

	kind, detail := phase.Judge(&run.Report, o.EILSEQ, c.Checksum == ChecksumNull)
	if kind != "" {
		res.Status = taxonomy.StatusFailed
		res.Kind = kind
		res.Detail = detail
	} else {
		res.Status = taxonomy.StatusPassed
	}
	o.logResult(res)
	return res
}

func (o *Orchestrator) logResult(res taxonomy.CaseResult) {
	if o.Logger == nil {
		return
	}
	switch res.Status {
	case taxonomy.StatusPassed:
		o.Logger.Info("case passed",
			"id", res.CaseID, "matrix", res.Matrix,
			"direction", res.Direction, "checksum", res.Checksum, "mangle", res.Mangle)
	case taxonomy.StatusSkipped:
		o.Logger.Info("case skipped",
			"id", res.CaseID, "matrix", res.Matrix,
			"checksum", res.Checksum, "reason", res.Detail)
	default:
		o.Logger.Error("case failed",
			"id", res.CaseID, "matrix", res.Matrix,
			"direction", res.Direction, "checksum", res.Checksum,
			"kind", res.Kind, "detail", res.Detail)
	}
}
