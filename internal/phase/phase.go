// Package phase judges fault-injection run reports.
//
// A fault-injection case sequences one subject invocation through four
// stonewalled phases: layout (write the data under verification),
// success (verify-only read of the fresh data), mangle (one corrupting
// write), and failure (verify-only read of the corrupted data). The
// machine is linear with no branches; the subject's stonewall
// directive guarantees each phase's I/O completes before the next
// starts, so the report can be judged in order.
package phase

import (
	"fmt"

	"github.com/vincentkfu/fioverify/internal/taxonomy"
)

// Phase names, in execution order.
const (
	Layout  = "layout"
	Success = "success"
	Mangle  = "mangle"
	Failure = "failure"
)

// Names returns the expected phase sequence.
func Names() []string {
	return []string{Layout, Success, Mangle, Failure}
}

// Result is the subject's verdict for one phase.
type Result struct {
	Name  string `json:"name"`
	Error int    `json:"error"`
	OK    bool   `json:"ok"`
}

// RunReport is the ordered collection of phase results from one
// subject invocation.
type RunReport struct {
	Phases []Result `json:"phases"`
}

// Judge evaluates a fault-injection run report. expectCode is the
// platform's illegal-byte-sequence code; nullChecksum relaxes the
// failure-phase rule because a disabled checksum cannot be expected to
// detect corruption. Judge marks each phase's OK field as it goes and
// returns the failure classification, or an empty Kind when the case
// passes.
func Judge(rep *RunReport, expectCode int, nullChecksum bool) (taxonomy.Kind, string) {
	want := Names()
	if len(rep.Phases) != len(want) {
		return taxonomy.PhaseCountMismatch,
			fmt.Sprintf("report has %d phases, want %d", len(rep.Phases), len(want))
	}
	for i, name := range want {
		if rep.Phases[i].Name != name {
			return taxonomy.PhaseCountMismatch,
				fmt.Sprintf("phase %d is %q, want %q", i, rep.Phases[i].Name, name)
		}
	}

	// Phase-count errors fail the case regardless of individual
	// outcomes, so phase rules are only applied past this point.
	kind := taxonomy.Kind("")
	detail := ""
	for i := range rep.Phases {
		p := &rep.Phases[i]
		switch p.Name {
		case Layout, Success:
			p.OK = p.Error == 0
			if !p.OK && kind == "" {
				kind = taxonomy.FixtureSetupFailure
				detail = fmt.Sprintf("%s phase reported error %d", p.Name, p.Error)
			}
		case Mangle:
			p.OK = p.Error == 0
			if !p.OK && kind == "" {
				kind = taxonomy.CorruptionInjectionFailure
				detail = fmt.Sprintf("mangle phase reported error %d", p.Error)
			}
		case Failure:
			if nullChecksum {
				// Any error code, including 0, is acceptable.
				p.OK = true
				continue
			}
			p.OK = p.Error == expectCode
			if !p.OK && kind == "" {
				kind = taxonomy.DetectionMismatch
				detail = fmt.Sprintf("failure phase reported error %d, want %d", p.Error, expectCode)
			}
		}
	}
	return kind, detail
}
