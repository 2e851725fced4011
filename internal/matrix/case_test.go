package matrix

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/vincentkfu/fioverify/internal/mangle"
)

func TestDirections_WriteClassPrecedesReadClass(t *testing.T) {
	order := map[Direction]int{}
	for i, d := range Directions() {
		order[d] = i
	}

	if order[DirWrite] >= order[DirRead] {
		t.Error("write must precede read in iteration order")
	}
	if order[DirRandWrite] >= order[DirRandRead] {
		t.Error("randwrite must precede randread in iteration order")
	}
}

func TestDirection_ReadOnly(t *testing.T) {
	readOnly := map[Direction]bool{
		DirWrite: false, DirReadWrite: false, DirRead: true,
		DirRandWrite: false, DirRandRW: false, DirRandRead: true,
	}
	for d, want := range readOnly {
		if got := d.ReadOnly(); got != want {
			t.Errorf("%s.ReadOnly() = %v, want %v", d, got, want)
		}
	}
}

func TestChecksums_NullIsLast(t *testing.T) {
	for _, list := range [][]Checksum{DefaultChecksums(), CompleteChecksums()} {
		if list[len(list)-1] != ChecksumNull {
			t.Errorf("checksum list does not end with the null sentinel: %v", list)
		}
	}
}

func TestCompleteChecksums_AddsSHA3(t *testing.T) {
	complete := CompleteChecksums()
	def := DefaultChecksums()
	if len(complete) <= len(def) {
		t.Fatalf("complete set (%d) not larger than default (%d)", len(complete), len(def))
	}
	found := false
	for _, c := range complete {
		if c == "sha3-512" {
			found = true
		}
	}
	if !found {
		t.Error("complete set missing sha3-512")
	}
}

func TestParseChecksums(t *testing.T) {
	got, err := ParseChecksums([]string{"crc32c", "null"})
	if err != nil {
		t.Fatalf("ParseChecksums failed: %v", err)
	}
	if len(got) != 2 || got[0] != "crc32c" || got[1] != ChecksumNull {
		t.Errorf("ParseChecksums = %v", got)
	}

	if _, err := ParseChecksums([]string{"crc32c", "rot13"}); err == nil {
		t.Error("expected error for unknown checksum")
	}
}

func TestVerifyCase_FreshValuePerCoordinate(t *testing.T) {
	tmpl := Templates()[0]

	a := tmpl.VerifyCase("/run", DirWrite, "md5")
	b := tmpl.VerifyCase("/run", DirWrite, "md5")

	// Mutating one minted case must leak into neither the template
	// nor a sibling case.
	a.FixtureDir = "/poisoned"
	a.Checksum = "sha1"
	if b.FixtureDir != "" || b.Checksum != "md5" {
		t.Errorf("case mutation leaked across iterations: %+v", b)
	}
	c := tmpl.VerifyCase("/run", DirWrite, "md5")
	if c.FixtureDir != "" || c.Checksum != "md5" {
		t.Errorf("case mutation leaked into template: %+v", c)
	}
}

func TestVerifyCase_ArtifactDir(t *testing.T) {
	c := Templates()[1].VerifyCase("/run", DirRandRead, "sha256")
	want := filepath.Join("/run", "ddir_randread_csum_sha256", "0002")
	if c.ArtifactDir != want {
		t.Errorf("ArtifactDir = %q, want %q", c.ArtifactDir, want)
	}
	if c.Criterion != ExactMatch {
		t.Error("verify cases must use the exact-match criterion")
	}
}

func TestFaultCase_Coordinate(t *testing.T) {
	c := Templates()[0].FaultCase("/run", mangle.ModePartial, "crc32c")
	if c.Direction != DirRandWrite {
		t.Errorf("fault case direction = %s, want randwrite", c.Direction)
	}
	if c.Criterion != NonzeroExitAllowed {
		t.Error("fault cases must allow a nonzero subject exit")
	}
	want := filepath.Join("/run", "mangle_partial_csum_crc32c", "0001")
	if c.ArtifactDir != want {
		t.Errorf("ArtifactDir = %q, want %q", c.ArtifactDir, want)
	}
	if c.PartialBytes != mangle.DefaultPartialBytes {
		t.Errorf("PartialBytes = %d, want %d", c.PartialBytes, mangle.DefaultPartialBytes)
	}
}

func TestInvocation_PlainVerifyStanza(t *testing.T) {
	c := Templates()[0].VerifyCase("/run", DirWrite, "md5")
	inv := c.Invocation()

	if len(inv.Jobs) != 1 || inv.Jobs[0].Name != "verify" {
		t.Fatalf("verify invocation jobs = %+v", inv.Jobs)
	}
	joined := strings.Join(inv.Jobs[0].Options, " ")
	for _, want := range []string{"--rw=write", "--verify=md5", "--ioengine=libaio",
		"--direct=1", "--iodepth=32", "--filesize=2097152", "--bs=512"} {
		if !strings.Contains(joined, want) {
			t.Errorf("stanza missing %s: %s", want, joined)
		}
	}
	if strings.Contains(joined, "--directory=") {
		t.Error("write-class stanza must not point at a fixture directory")
	}
	if inv.Dir != c.ArtifactDir {
		t.Errorf("invocation dir = %q, want case artifact dir %q", inv.Dir, c.ArtifactDir)
	}
}

func TestInvocation_ReadClassUsesFixtureDirectory(t *testing.T) {
	c := Templates()[0].VerifyCase("/run", DirRead, "md5")
	c.FixtureDir = "/run/ddir_write_csum_md5/0001"
	inv := c.Invocation()

	joined := strings.Join(inv.Jobs[0].Options, " ")
	if !strings.Contains(joined, "--directory=/run/ddir_write_csum_md5/0001") {
		t.Errorf("read-class stanza missing fixture directory: %s", joined)
	}
}

func TestInvocation_NoRandomMapAndVerifyAsync(t *testing.T) {
	c := Templates()[1].VerifyCase("/run", DirWrite, "md5")
	if joined := strings.Join(c.Invocation().Jobs[0].Options, " "); !strings.Contains(joined, "--norandommap=1") {
		t.Errorf("template 2 stanza missing norandommap: %s", joined)
	}

	c = Templates()[2].VerifyCase("/run", DirWrite, "md5")
	joined := strings.Join(c.Invocation().Jobs[0].Options, " ")
	if !strings.Contains(joined, "--verify_async=2") || !strings.Contains(joined, "--verify_async_cpus=0-1") {
		t.Errorf("template 3 stanza missing offloaded verification options: %s", joined)
	}
}

func TestFaultInvocation_FourStonewalledPhases(t *testing.T) {
	c := Templates()[0].FaultCase("/run", mangle.ModePartial, "crc32c")
	inv := c.FaultInvocation()

	wantNames := []string{"layout", "success", "mangle", "failure"}
	if len(inv.Jobs) != len(wantNames) {
		t.Fatalf("fault invocation has %d stanzas, want %d", len(inv.Jobs), len(wantNames))
	}
	for i, name := range wantNames {
		if inv.Jobs[i].Name != name {
			t.Errorf("stanza %d = %q, want %q", i, inv.Jobs[i].Name, name)
		}
	}

	// Every phase must act on the same file.
	for _, job := range inv.Jobs {
		if !strings.Contains(strings.Join(job.Options, " "), "--filename="+faultDataFile) {
			t.Errorf("stanza %s missing shared filename", job.Name)
		}
	}

	mangleOpts := strings.Join(inv.Jobs[2].Options, " ")
	for _, want := range []string{"--bs=4", "--number_ios=1", "--randrepeat=0"} {
		if !strings.Contains(mangleOpts, want) {
			t.Errorf("mangle stanza missing %s: %s", want, mangleOpts)
		}
	}
	if strings.Contains(mangleOpts, "--verify=") {
		t.Errorf("mangle stanza must not verify: %s", mangleOpts)
	}

	layoutOpts := strings.Join(inv.Jobs[0].Options, " ")
	if !strings.Contains(layoutOpts, "--rw=randwrite") {
		t.Errorf("layout stanza is not a random write: %s", layoutOpts)
	}
	for _, i := range []int{1, 3} {
		opts := strings.Join(inv.Jobs[i].Options, " ")
		if !strings.Contains(opts, "--rw=randread") || !strings.Contains(opts, "--verify=crc32c") {
			t.Errorf("stanza %s is not a verify-only random read: %s", inv.Jobs[i].Name, opts)
		}
	}
}

func TestFaultInvocation_BlockModeUsesRecordSize(t *testing.T) {
	c := Templates()[2].FaultCase("/run", mangle.ModeBlock, "sha1")
	inv := c.FaultInvocation()
	mangleOpts := strings.Join(inv.Jobs[2].Options, " ")
	if !strings.Contains(mangleOpts, "--bs=4096") {
		t.Errorf("block-mode mangle stanza missing record-size bs: %s", mangleOpts)
	}
}

func TestRequirements(t *testing.T) {
	linux2cpu := Environment{GOOS: "linux", NumCPU: 2}
	mac := Environment{GOOS: "darwin", NumCPU: 16}
	linux1cpu := Environment{GOOS: "linux", NumCPU: 1}

	if ok, _ := RequireLinuxAIO().Check(linux2cpu); !ok {
		t.Error("linux-aio should be met on linux")
	}
	if ok, reason := RequireLinuxAIO().Check(mac); ok || reason == "" {
		t.Error("linux-aio should be unmet on darwin with a reason")
	}
	if ok, _ := RequireCPUs(2).Check(linux2cpu); !ok {
		t.Error("cpus>=2 should be met with 2 CPUs")
	}
	if ok, _ := RequireCPUs(2).Check(linux1cpu); ok {
		t.Error("cpus>=2 should be unmet with 1 CPU")
	}
	if ok, _ := RequireCPUs(2).Check(mac); ok {
		t.Error("CPU affinity requirement should be unmet off linux")
	}
}
