package matrix

import (
	"strconv"

	"github.com/vincentkfu/fioverify/internal/mangle"
	"github.com/vincentkfu/fioverify/internal/phase"
	"github.com/vincentkfu/fioverify/internal/runner"
)

// faultDataFile is the shared filename for all four phases of a
// fault-injection invocation. Stanza-derived default filenames would
// give each phase its own file and defeat the corruption.
const faultDataFile = "verify-data"

func boolOpt(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// commonOptions are the template-derived options shared by a case's
// stanzas.
func (c *Case) commonOptions() []string {
	opts := []string{
		"--ioengine=" + c.IOEngine,
		"--direct=" + boolOpt(c.Direct),
		"--iodepth=" + strconv.Itoa(c.IODepth),
		"--filesize=" + strconv.FormatInt(c.FileSize, 10),
		"--bs=" + strconv.FormatInt(c.BlockSize, 10),
	}
	if c.NoRandomMap {
		opts = append(opts, "--norandommap=1")
	}
	if c.VerifyAsync > 0 {
		opts = append(opts,
			"--verify_async="+strconv.Itoa(c.VerifyAsync),
			"--verify_async_cpus="+c.VerifyAsyncCPUs)
	}
	return opts
}

// Invocation builds the subject invocation for a plain verify case:
// one stanza running the case's data direction with verification
// enabled. Read-class cases point the subject at the fixture
// directory their write-class counterpart populated.
func (c *Case) Invocation() *runner.Invocation {
	opts := append(c.commonOptions(),
		"--rw="+string(c.Direction),
		"--verify="+string(c.Checksum))
	if c.FixtureDir != "" {
		opts = append(opts, "--directory="+c.FixtureDir)
	}
	return &runner.Invocation{
		// The stanza name is fixed so write- and read-class cases
		// derive the same default data filename.
		Jobs: []runner.Job{{Name: "verify", Options: opts}},
		Dir:  c.ArtifactDir,
	}
}

// FaultInvocation builds the four-phase fault-injection invocation:
// layout writes the data, success verifies it untouched, mangle
// performs the single corrupting write, and failure verifies the
// corrupted data. All phases are stonewalled stanzas of one run.
func (c *Case) FaultInvocation() *runner.Invocation {
	file := "--filename=" + faultDataFile
	verify := "--verify=" + string(c.Checksum)

	layout := append(c.commonOptions(), "--rw="+string(c.Direction), verify, file)
	success := append(c.commonOptions(), "--rw=randread", verify, file)

	mangleOpts := append(mangle.JobOptions(c.MangleMode, c.BlockSize, c.PartialBytes),
		"--filesize="+strconv.FormatInt(c.FileSize, 10), file)

	failure := append(c.commonOptions(), "--rw=randread", verify, file)

	return &runner.Invocation{
		Jobs: []runner.Job{
			{Name: phase.Layout, Options: layout},
			{Name: phase.Success, Options: success},
			{Name: phase.Mangle, Options: mangleOpts},
			{Name: phase.Failure, Options: failure},
		},
		Dir: c.ArtifactDir,
	}
}
