// Package fixture wires read-class test cases to the artifacts their
// write-class counterparts produced earlier in the same run.
//
// Path derivation is pure: a read-class combination directory is the
// write-class combination directory with the direction label swapped.
// Whether the prerequisite actually ran is tracked separately by a
// Registry populated as write-class cases complete.
package fixture

import (
	"fmt"
	"path/filepath"
)

// counterpart maps each read-class direction label to the write-class
// label that produces its fixture.
var counterpart = map[string]string{
	"read":     "write",
	"randread": "randwrite",
}

// Counterpart returns the write-class direction whose artifacts a
// read-class direction consumes. ok is false for directions that do
// not need a fixture (they write their own data).
func Counterpart(direction string) (string, bool) {
	w, ok := counterpart[direction]
	return w, ok
}

// CombinationDir is the canonical per-combination artifact directory
// under the run's artifact root.
func CombinationDir(root, direction, checksum string) string {
	return filepath.Join(root, fmt.Sprintf("ddir_%s_csum_%s", direction, checksum))
}

// CaseDir is the dedicated numbered subdirectory for one test case
// within a combination directory.
func CaseDir(root, direction, checksum string, id int) string {
	return filepath.Join(CombinationDir(root, direction, checksum), fmt.Sprintf("%04d", id))
}

// ResolveDir derives the directory a read-class case must reuse: the
// case directory of the write-class counterpart for the same test id
// and checksum. It performs no existence check; a missing prerequisite
// surfaces through the Registry or as an ordinary subject failure.
func ResolveDir(root, direction, checksum string, id int) (string, error) {
	w, ok := Counterpart(direction)
	if !ok {
		return "", fmt.Errorf("direction %q does not consume a fixture", direction)
	}
	return CaseDir(root, w, checksum, id), nil
}

// Key identifies one produced fixture: the write-class coordinate that
// made it.
type Key struct {
	Direction string
	Checksum  string
	ID        int
}

// Registry records which write-class cases have completed and where
// their artifacts live. Read-class cases consult it before invoking
// the subject so a missing prerequisite fails fast instead of relying
// on iteration order alone.
type Registry struct {
	records map[Key]string
}

// NewRegistry returns an empty fixture registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[Key]string)}
}

// Record notes that the write-class case identified by key completed
// and left its artifacts in dir.
func (r *Registry) Record(key Key, dir string) {
	r.records[key] = dir
}

// Lookup returns the artifact directory a read-class coordinate
// depends on, or ok=false when the prerequisite never completed in
// this run.
func (r *Registry) Lookup(direction, checksum string, id int) (string, bool) {
	w, ok := Counterpart(direction)
	if !ok {
		return "", false
	}
	dir, ok := r.records[Key{Direction: w, Checksum: checksum, ID: id}]
	return dir, ok
}
