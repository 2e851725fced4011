// Package runner invokes the subject I/O workload generator and turns
// its structured JSON report into a phase run report.
//
// Exactly one subject subprocess is active at a time; every invocation
// is bounded by a wall-clock timeout and forcibly terminated on
// expiry. The subject's own exit code is not trusted as a verdict,
// since verification failures are expected in fault-injection cases;
// the report file is the authoritative record of what happened.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/vincentkfu/fioverify/internal/phase"
)

// Sentinel errors the orchestrator maps onto failure kinds.
var (
	// ErrTimeout marks an invocation that was killed at the
	// wall-clock bound. Orphaned child I/O submitters may persist; the
	// harness accepts that.
	ErrTimeout = errors.New("subject invocation timed out")

	// ErrParse marks an absent or malformed report file.
	ErrParse = errors.New("subject report unparseable")
)

// DefaultTimeout bounds one subject invocation.
const DefaultTimeout = 300 * time.Second

// Job is one stanza of a subject invocation.
type Job struct {
	Name    string
	Options []string
}

// Invocation describes one subject run: an ordered list of job
// stanzas executed in Dir, with the structured report written to
// OutputPath (defaulted under Dir when empty).
type Invocation struct {
	Jobs       []Job
	Dir        string
	OutputPath string
}

// Argv builds the argument vector for the invocation. Every stanza
// after the first carries the stonewall directive so phases never
// overlap.
func (inv *Invocation) Argv(outputPath string) []string {
	args := []string{"--output-format=json", "--output=" + outputPath}
	for i, job := range inv.Jobs {
		args = append(args, "--name="+job.Name)
		if i > 0 {
			args = append(args, "--stonewall")
		}
		args = append(args, job.Options...)
	}
	return args
}

// Result is what one invocation produced.
type Result struct {
	ExitCode int
	Report   phase.RunReport
}

// Runner invokes the subject binary.
type Runner struct {
	// FioPath is the subject executable.
	FioPath string

	// Timeout bounds each invocation's wall-clock time. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	Logger *charmlog.Logger
}

// Run executes one invocation and parses its report. Cancellation of
// the caller's ctx does not terminate a running invocation; the
// orchestrator checks ctx between cases, and each invocation is
// bounded by its own wall-clock timeout instead.
func (r *Runner) Run(ctx context.Context, inv *Invocation) (*Result, error) {
	if err := os.MkdirAll(inv.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}

	outputPath := inv.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(inv.Dir, "output.json")
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	// The caller's ctx gates case boundaries only; an in-flight
	// invocation always finishes under its own deadline.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	argv := inv.Argv(outputPath)
	if r.Logger != nil {
		r.Logger.Debug("invoking subject", "bin", r.FioPath, "args", argv)
	}

	cmd := exec.CommandContext(runCtx, r.FioPath, argv...)
	cmd.Dir = inv.Dir

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("invoking subject: %w", err)
		}
		// Nonzero exit is expected whenever a verify job errors;
		// the report decides whether that was correct.
		exitCode = exitErr.ExitCode()
	}

	report, err := LoadReport(outputPath)
	if err != nil {
		return nil, err
	}

	return &Result{ExitCode: exitCode, Report: *report}, nil
}

// LoadReport reads, validates, and maps a subject JSON report file
// into a phase run report. Any defect is wrapped in ErrParse.
func LoadReport(path string) (*phase.RunReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrParse, path, err)
	}

	doc, err := parseReport(raw)
	if err != nil {
		return nil, err
	}

	rep := &phase.RunReport{Phases: make([]phase.Result, 0, len(doc.Jobs))}
	for _, j := range doc.Jobs {
		rep.Phases = append(rep.Phases, phase.Result{Name: j.Jobname, Error: j.Error})
	}
	return rep, nil
}
