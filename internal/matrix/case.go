// Package matrix defines the test-case parameter space and the
// orchestrator that drives the subject through it.
package matrix

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/vincentkfu/fioverify/internal/fixture"
	"github.com/vincentkfu/fioverify/internal/mangle"
)

// Direction is the data direction of a case's primary workload.
type Direction string

const (
	DirWrite     Direction = "write"
	DirReadWrite Direction = "readwrite"
	DirRead      Direction = "read"
	DirRandWrite Direction = "randwrite"
	DirRandRW    Direction = "randrw"
	DirRandRead  Direction = "randread"
)

// Directions returns the data directions in iteration order. Every
// write-class direction precedes its read-class counterpart so that
// read-class cases find artifacts written with verification enabled.
func Directions() []Direction {
	return []Direction{DirWrite, DirReadWrite, DirRead, DirRandWrite, DirRandRW, DirRandRead}
}

// ReadOnly reports whether the direction consumes a fixture produced
// by an earlier write-class case instead of writing its own data.
func (d Direction) ReadOnly() bool {
	_, ok := fixture.Counterpart(string(d))
	return ok
}

// Checksum names a verification digest/pattern method understood by
// the subject.
type Checksum string

// ChecksumNull is the sentinel method: verification is structurally
// performed but content mismatches are never flagged.
const ChecksumNull Checksum = "null"

// DefaultChecksums is the everyday verification set.
func DefaultChecksums() []Checksum {
	return []Checksum{
		"md5", "crc64", "crc32c", "crc32c-intel", "crc16", "crc7",
		"xxhash", "sha512", "sha256", "sha1",
		ChecksumNull,
	}
}

// CompleteChecksums adds the slower SHA-3 family.
func CompleteChecksums() []Checksum {
	return []Checksum{
		"md5", "crc64", "crc32c", "crc32c-intel", "crc16", "crc7",
		"xxhash", "sha512", "sha256", "sha1",
		"sha3-224", "sha3-384", "sha3-512",
		ChecksumNull,
	}
}

// ParseChecksums validates a user-supplied checksum list.
func ParseChecksums(names []string) ([]Checksum, error) {
	known := make(map[Checksum]bool)
	for _, c := range CompleteChecksums() {
		known[c] = true
	}
	out := make([]Checksum, 0, len(names))
	for _, n := range names {
		c := Checksum(n)
		if !known[c] {
			return nil, fmt.Errorf("unknown checksum %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

// SuccessCriterion states how the subject's exit code is judged.
type SuccessCriterion int

const (
	// ExactMatch: the subject must exit zero with every stanza clean.
	ExactMatch SuccessCriterion = iota

	// NonzeroExitAllowed: the report alone decides; a nonzero exit is
	// expected when a verify stanza detects corruption.
	NonzeroExitAllowed
)

// Environment captures the host facts requirement predicates consult.
type Environment struct {
	GOOS   string
	NumCPU int
}

// HostEnvironment describes the machine the harness runs on.
func HostEnvironment() Environment {
	return Environment{GOOS: runtime.GOOS, NumCPU: runtime.NumCPU()}
}

// Requirement is a named host predicate; unmet requirements skip a
// case rather than failing it.
type Requirement struct {
	Name  string
	Check func(env Environment) (bool, string)
}

// RequireLinuxAIO gates cases using the native async I/O engine.
func RequireLinuxAIO() Requirement {
	return Requirement{
		Name: "linux-aio",
		Check: func(env Environment) (bool, string) {
			if env.GOOS != "linux" {
				return false, fmt.Sprintf("ioengine libaio needs linux, host is %s", env.GOOS)
			}
			return true, ""
		},
	}
}

// RequireCPUs gates cases that pin verification workers to CPUs.
func RequireCPUs(n int) Requirement {
	return Requirement{
		Name: fmt.Sprintf("cpus>=%d", n),
		Check: func(env Environment) (bool, string) {
			if env.GOOS != "linux" {
				return false, fmt.Sprintf("CPU affinity unsupported on %s", env.GOOS)
			}
			if env.NumCPU < n {
				return false, fmt.Sprintf("needs %d CPUs, host has %d", n, env.NumCPU)
			}
			return true, ""
		},
	}
}

// Template is the fixed part of a test case. The matrix coordinate
// (direction/checksum or mangle-mode/checksum) is applied per
// iteration to mint a fresh Case; templates are never mutated.
type Template struct {
	ID              int
	IOEngine        string
	Direct          bool
	IODepth         int
	FileSize        int64
	BlockSize       int64
	NoRandomMap     bool
	VerifyAsync     int
	VerifyAsyncCPUs string
	Requirements    []Requirement
}

// Templates returns the per-coordinate case templates.
func Templates() []Template {
	return []Template{
		{
			// Basic case.
			ID:           1,
			IOEngine:     "libaio",
			Direct:       true,
			IODepth:      32,
			FileSize:     2 << 20,
			BlockSize:    512,
			Requirements: []Requirement{RequireLinuxAIO()},
		},
		{
			// Basic case without the random map.
			ID:           2,
			IOEngine:     "libaio",
			Direct:       true,
			IODepth:      32,
			FileSize:     2 << 20,
			BlockSize:    512,
			NoRandomMap:  true,
			Requirements: []Requirement{RequireLinuxAIO()},
		},
		{
			// Offloaded verification pinned to two CPUs.
			ID:              3,
			IOEngine:        "libaio",
			Direct:          true,
			IODepth:         32,
			FileSize:        2 << 20,
			BlockSize:       4096,
			VerifyAsync:     2,
			VerifyAsyncCPUs: "0-1",
			Requirements:    []Requirement{RequireLinuxAIO(), RequireCPUs(2)},
		},
	}
}

// Case is one immutable matrix coordinate, re-derived fresh from a
// template each iteration.
type Case struct {
	ID           int
	Direction    Direction
	Checksum     Checksum
	MangleMode   mangle.Mode // empty for plain verify cases
	PartialBytes int64

	IOEngine        string
	Direct          bool
	IODepth         int
	FileSize        int64
	BlockSize       int64
	NoRandomMap     bool
	VerifyAsync     int
	VerifyAsyncCPUs string

	Criterion    SuccessCriterion
	Requirements []Requirement

	// ArtifactDir is the case's dedicated numbered subdirectory.
	// FixtureDir, for read-class cases, is the prerequisite
	// write-class case's directory.
	ArtifactDir string
	FixtureDir  string
}

// VerifyCase mints the direction-matrix case for one coordinate.
func (t Template) VerifyCase(root string, d Direction, c Checksum) Case {
	return Case{
		ID:              t.ID,
		Direction:       d,
		Checksum:        c,
		IOEngine:        t.IOEngine,
		Direct:          t.Direct,
		IODepth:         t.IODepth,
		FileSize:        t.FileSize,
		BlockSize:       t.BlockSize,
		NoRandomMap:     t.NoRandomMap,
		VerifyAsync:     t.VerifyAsync,
		VerifyAsyncCPUs: t.VerifyAsyncCPUs,
		Criterion:       ExactMatch,
		Requirements:    t.Requirements,
		ArtifactDir:     fixture.CaseDir(root, string(d), string(c), t.ID),
	}
}

// FaultCase mints the fault-injection case for one coordinate. The
// workload direction is fixed: random write, then verify-only reads
// around one corrupting write.
func (t Template) FaultCase(root string, m mangle.Mode, c Checksum) Case {
	return Case{
		ID:              t.ID,
		Direction:       DirRandWrite,
		Checksum:        c,
		MangleMode:      m,
		PartialBytes:    mangle.DefaultPartialBytes,
		IOEngine:        t.IOEngine,
		Direct:          t.Direct,
		IODepth:         t.IODepth,
		FileSize:        t.FileSize,
		BlockSize:       t.BlockSize,
		NoRandomMap:     t.NoRandomMap,
		VerifyAsync:     t.VerifyAsync,
		VerifyAsyncCPUs: t.VerifyAsyncCPUs,
		Criterion:       NonzeroExitAllowed,
		Requirements:    t.Requirements,
		ArtifactDir:     FaultCaseDir(root, m, c, t.ID),
	}
}

// FaultCaseDir is the canonical artifact directory for a
// fault-injection coordinate.
func FaultCaseDir(root string, m mangle.Mode, c Checksum, id int) string {
	return filepath.Join(root, fmt.Sprintf("mangle_%s_csum_%s", m, c), fmt.Sprintf("%04d", id))
}
