package matrix

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/vincentkfu/fioverify/internal/fixture"
	"github.com/vincentkfu/fioverify/internal/mangle"
	"github.com/vincentkfu/fioverify/internal/phase"
	"github.com/vincentkfu/fioverify/internal/runner"
	"github.com/vincentkfu/fioverify/internal/taxonomy"
)

// fakeInvoker records invocations and answers them via respond.
type fakeInvoker struct {
	invocations []*runner.Invocation
	respond     func(inv *runner.Invocation) (*runner.Result, error)
}

func (f *fakeInvoker) Run(_ context.Context, inv *runner.Invocation) (*runner.Result, error) {
	f.invocations = append(f.invocations, inv)
	return f.respond(inv)
}

// cleanResult answers any invocation with a zero-error stanza report.
func cleanResult(inv *runner.Invocation) (*runner.Result, error) {
	rep := phase.RunReport{}
	for _, j := range inv.Jobs {
		rep.Phases = append(rep.Phases, phase.Result{Name: j.Name, Error: 0})
	}
	return &runner.Result{ExitCode: 0, Report: rep}, nil
}

// faultResult answers a four-phase invocation with the given
// failure-phase error code.
func faultResult(failureCode int) func(inv *runner.Invocation) (*runner.Result, error) {
	return func(inv *runner.Invocation) (*runner.Result, error) {
		rep := phase.RunReport{}
		for _, j := range inv.Jobs {
			code := 0
			if j.Name == phase.Failure {
				code = failureCode
			}
			rep.Phases = append(rep.Phases, phase.Result{Name: j.Name, Error: code})
		}
		exit := 0
		if failureCode != 0 {
			exit = 1
		}
		return &runner.Result{ExitCode: exit, Report: rep}, nil
	}
}

func hasOption(inv *runner.Invocation, opt string) bool {
	for _, j := range inv.Jobs {
		for _, o := range j.Options {
			if strings.Contains(o, opt) {
				return true
			}
		}
	}
	return false
}

func rwOf(inv *runner.Invocation) string {
	for _, o := range inv.Jobs[0].Options {
		if strings.HasPrefix(o, "--rw=") {
			return strings.TrimPrefix(o, "--rw=")
		}
	}
	return ""
}

func newOrchestrator(inv Invoker, checksums []Checksum, modes []mangle.Mode) *Orchestrator {
	return &Orchestrator{
		Invoker:     inv,
		FioPath:     "/usr/bin/fio",
		Root:        "/run",
		Templates:   Templates()[:1],
		Checksums:   checksums,
		MangleModes: modes,
		Env:         Environment{GOOS: "linux", NumCPU: 8},
		EILSEQ:      84,
	}
}

func TestRun_VerifyMatrixChainsFixtures(t *testing.T) {
	fake := &fakeInvoker{respond: cleanResult}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)

	summary := o.Run(context.Background())

	if summary.Tally.Passed != 6 || summary.Tally.Failed != 0 {
		t.Fatalf("tally = %+v, want 6 passed", summary.Tally)
	}

	var readInv, randreadInv *runner.Invocation
	for _, inv := range fake.invocations {
		switch rwOf(inv) {
		case "read":
			readInv = inv
		case "randread":
			randreadInv = inv
		}
	}
	if readInv == nil || randreadInv == nil {
		t.Fatal("read-class cases never invoked")
	}
	if !hasOption(readInv, "--directory=/run/ddir_write_csum_md5/0001") {
		t.Errorf("read case not wired to write artifacts: %v", readInv.Jobs[0].Options)
	}
	if !hasOption(randreadInv, "--directory=/run/ddir_randwrite_csum_md5/0001") {
		t.Errorf("randread case not wired to randwrite artifacts: %v", randreadInv.Jobs[0].Options)
	}
}

func TestRun_MissingFixtureFailsFast(t *testing.T) {
	// Every write-class case fails, so no fixture is ever recorded.
	fake := &fakeInvoker{respond: func(inv *runner.Invocation) (*runner.Result, error) {
		res, _ := cleanResult(inv)
		res.ExitCode = 1
		return res, nil
	}}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)

	summary := o.Run(context.Background())

	missing := 0
	for _, r := range summary.Results {
		if r.Kind == taxonomy.MissingFixture {
			missing++
			if r.Direction != "read" && r.Direction != "randread" {
				t.Errorf("missing-fixture on a write-class case: %+v", r)
			}
		}
	}
	if missing != 2 {
		t.Errorf("got %d missing-fixture failures, want 2", missing)
	}

	// Read-class cases must fail fast without touching the subject.
	for _, inv := range fake.invocations {
		if rw := rwOf(inv); rw == "read" || rw == "randread" {
			t.Errorf("read-class case was invoked despite missing fixture")
		}
	}
	if summary.Tally.Failed != 6 {
		t.Errorf("tally = %+v, want 6 failed", summary.Tally)
	}
}

func TestRun_FaultDetectionPasses(t *testing.T) {
	fake := &fakeInvoker{respond: faultResult(84)}
	o := newOrchestrator(fake, []Checksum{"crc32c"}, []mangle.Mode{mangle.ModePartial})

	summary := o.Run(context.Background())

	var fault *taxonomy.CaseResult
	for i := range summary.Results {
		if summary.Results[i].Matrix == "fault" {
			fault = &summary.Results[i]
		}
	}
	if fault == nil {
		t.Fatal("no fault-injection case ran")
	}
	// Nonzero subject exit is expected and allowed here.
	if fault.Status != taxonomy.StatusPassed {
		t.Errorf("fault case = %+v, want passed", fault)
	}
}

func TestRun_FaultNullChecksumUndetectedPasses(t *testing.T) {
	fake := &fakeInvoker{respond: faultResult(0)}
	o := newOrchestrator(fake, []Checksum{ChecksumNull}, []mangle.Mode{mangle.ModeBlock})

	summary := o.Run(context.Background())

	for _, r := range summary.Results {
		if r.Matrix == "fault" && r.Status != taxonomy.StatusPassed {
			t.Errorf("null-checksum fault case = %+v, want passed", r)
		}
	}
}

func TestRun_FaultUndetectedIsDetectionMismatch(t *testing.T) {
	fake := &fakeInvoker{respond: faultResult(0)}
	o := newOrchestrator(fake, []Checksum{"crc32c"}, []mangle.Mode{mangle.ModePartial})

	summary := o.Run(context.Background())

	found := false
	for _, r := range summary.Results {
		if r.Matrix == "fault" {
			found = true
			if r.Kind != taxonomy.DetectionMismatch {
				t.Errorf("fault case kind = %s, want DetectionMismatch", r.Kind)
			}
		}
	}
	if !found {
		t.Fatal("no fault-injection case ran")
	}
}

func TestRun_RunnerErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want taxonomy.Kind
	}{
		{fmt.Errorf("%w after 300s", runner.ErrTimeout), taxonomy.SubprocessTimeout},
		{fmt.Errorf("%w: bad json", runner.ErrParse), taxonomy.ResultParseFailure},
		{fmt.Errorf("no such binary"), taxonomy.VerifyFailure},
	}

	for _, tc := range cases {
		fake := &fakeInvoker{respond: func(*runner.Invocation) (*runner.Result, error) {
			return nil, tc.err
		}}
		o := newOrchestrator(fake, []Checksum{"md5"}, nil)
		summary := o.Run(context.Background())

		if summary.Results[0].Kind != tc.want {
			t.Errorf("error %v classified as %s, want %s", tc.err, summary.Results[0].Kind, tc.want)
		}
		if summary.Results[0].Status != taxonomy.StatusFailed {
			t.Errorf("error %v did not fail the case", tc.err)
		}
	}
}

func TestRun_UnmetRequirementSkips(t *testing.T) {
	fake := &fakeInvoker{respond: cleanResult}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)
	o.Env = Environment{GOOS: "darwin", NumCPU: 8}

	summary := o.Run(context.Background())

	if summary.Tally.Skipped != 6 || summary.Tally.Failed != 0 || summary.Tally.Passed != 0 {
		t.Errorf("tally = %+v, want all skipped", summary.Tally)
	}
	for _, r := range summary.Results {
		if r.Kind != taxonomy.EnvironmentUnmet {
			t.Errorf("skip kind = %s, want EnvironmentUnmet", r.Kind)
		}
	}
	if len(fake.invocations) != 0 {
		t.Errorf("subject invoked %d times despite unmet requirements", len(fake.invocations))
	}
}

func TestRun_SkipReqsBypassesRequirements(t *testing.T) {
	fake := &fakeInvoker{respond: cleanResult}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)
	o.Env = Environment{GOOS: "darwin", NumCPU: 1}
	o.SkipReqs = true

	summary := o.Run(context.Background())
	if summary.Tally.Passed != 6 {
		t.Errorf("tally = %+v, want 6 passed with --skip-req", summary.Tally)
	}
}

func TestRun_RunOnlySelection(t *testing.T) {
	fake := &fakeInvoker{respond: cleanResult}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)
	o.Templates = Templates()[:2]
	o.RunOnly = []int{2}

	summary := o.Run(context.Background())

	for _, r := range summary.Results {
		switch r.CaseID {
		case 1:
			if r.Status != taxonomy.StatusSkipped {
				t.Errorf("case 1 = %s, want skipped (run-only 2)", r.Status)
			}
		case 2:
			if r.Status != taxonomy.StatusPassed {
				t.Errorf("case 2 = %s, want passed", r.Status)
			}
		}
	}
}

func TestRun_SkipListSelection(t *testing.T) {
	fake := &fakeInvoker{respond: cleanResult}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)
	o.Templates = Templates()[:2]
	o.Skip = []int{1}

	summary := o.Run(context.Background())

	if summary.Tally.Skipped != 6 || summary.Tally.Passed != 6 {
		t.Errorf("tally = %+v, want 6 skipped and 6 passed", summary.Tally)
	}
}

func TestRun_InterruptStopsAtCaseBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fake := &fakeInvoker{}
	fake.respond = func(inv *runner.Invocation) (*runner.Result, error) {
		// Operator interrupt lands while a case is in flight; the
		// running invocation completes, then iteration stops.
		cancel()
		return cleanResult(inv)
	}
	o := newOrchestrator(fake, []Checksum{"md5"}, []mangle.Mode{mangle.ModeBlock})

	summary := o.Run(ctx)

	if len(fake.invocations) != 1 {
		t.Errorf("subject invoked %d times after interrupt, want 1", len(fake.invocations))
	}
	// The completed case is still tallied and reported.
	if summary.Tally.Passed != 1 {
		t.Errorf("tally = %+v, want the finished case counted", summary.Tally)
	}
}

func TestRunVerifyCase_CriterionGovernsExitCode(t *testing.T) {
	fake := &fakeInvoker{respond: func(inv *runner.Invocation) (*runner.Result, error) {
		res, _ := cleanResult(inv)
		res.ExitCode = 2
		return res, nil
	}}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)
	o.registry = fixture.NewRegistry()

	strict := Templates()[0].VerifyCase("/run", DirWrite, "md5")
	res := o.runVerifyCase(context.Background(), &strict)
	if res.Status != taxonomy.StatusFailed || res.Kind != taxonomy.VerifyFailure {
		t.Errorf("exact-match case with exit 2 = %+v, want VerifyFailure", res)
	}

	relaxed := Templates()[0].VerifyCase("/run", DirWrite, "md5")
	relaxed.Criterion = NonzeroExitAllowed
	res = o.runVerifyCase(context.Background(), &relaxed)
	if res.Status != taxonomy.StatusPassed {
		t.Errorf("nonzero-exit-allowed case with exit 2 = %+v, want passed", res)
	}
}

func TestRun_SummaryIdentity(t *testing.T) {
	fake := &fakeInvoker{respond: cleanResult}
	o := newOrchestrator(fake, []Checksum{"md5"}, nil)

	summary := o.Run(context.Background())
	if summary.RunID == "" {
		t.Error("summary missing run id")
	}
	if summary.FioPath != "/usr/bin/fio" {
		t.Errorf("summary fio path = %q", summary.FioPath)
	}
}
