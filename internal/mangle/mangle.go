// Package mangle deliberately corrupts previously written artifacts so
// that checksum verification can be exercised against known-bad data.
//
// A corruption is planned as exactly one overwrite: either one whole
// record at a record-aligned random offset, or a handful of bytes at an
// arbitrary random offset. Content is drawn from crypto/rand, never from
// a seeded source, so corrupted bytes differ from the originals.
package mangle

import (
	"bytes"
	"crypto/rand"
	"fmt"
	mathrand "math/rand/v2"
	"os"
	"strconv"
)

// Mode selects how much of the artifact one corruption destroys.
type Mode string

const (
	// ModeBlock overwrites one whole record, destroying the
	// verification header and the payload together. Detection must not
	// depend on which checksum algorithm is active.
	ModeBlock Mode = "block"

	// ModePartial overwrites a few payload bytes; detection is
	// expected via the content checksum.
	ModePartial Mode = "partial"
)

// DefaultPartialBytes is the overwrite size for ModePartial when the
// caller does not choose one.
const DefaultPartialBytes = 4

// Modes lists the supported corruption modes in matrix order.
func Modes() []Mode {
	return []Mode{ModeBlock, ModePartial}
}

// ParseMode converts a CLI/config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBlock, ModePartial:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mangle mode %q (want %q or %q)", s, ModeBlock, ModePartial)
}

// Op is one planned overwrite.
type Op struct {
	Offset int64
	Size   int64
}

// Plan chooses the byte range for one corruption of a file of
// fileSize bytes written in records of blockSize bytes.
//
// ModeBlock picks a record-aligned offset; ModePartial picks any byte
// offset that keeps the overwrite inside file bounds. partialBytes
// only applies to ModePartial; zero means DefaultPartialBytes.
func Plan(fileSize, blockSize int64, mode Mode, partialBytes int64) (Op, error) {
	if fileSize <= 0 || blockSize <= 0 {
		return Op{}, fmt.Errorf("invalid geometry: filesize %d, blocksize %d", fileSize, blockSize)
	}
	if blockSize > fileSize {
		return Op{}, fmt.Errorf("blocksize %d exceeds filesize %d", blockSize, fileSize)
	}

	switch mode {
	case ModeBlock:
		records := fileSize / blockSize
		return Op{
			Offset: mathrand.Int64N(records) * blockSize,
			Size:   blockSize,
		}, nil
	case ModePartial:
		n := partialBytes
		if n == 0 {
			n = DefaultPartialBytes
		}
		if n < 0 || n > fileSize {
			return Op{}, fmt.Errorf("partial size %d out of bounds for filesize %d", n, fileSize)
		}
		return Op{
			Offset: mathrand.Int64N(fileSize - n + 1),
			Size:   n,
		}, nil
	}
	return Op{}, fmt.Errorf("unknown mangle mode %q", mode)
}

// Apply performs the planned overwrite as a single WriteAt. The random
// content is redrawn until it differs from the original bytes, so a
// corruption can never be a silent no-op.
func Apply(path string, op Op) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	orig := make([]byte, op.Size)
	if _, err := f.ReadAt(orig, op.Offset); err != nil {
		return fmt.Errorf("reading original bytes at %d: %w", op.Offset, err)
	}

	junk := make([]byte, op.Size)
	for {
		if _, err := rand.Read(junk); err != nil {
			return fmt.Errorf("generating corruption: %w", err)
		}
		if !bytes.Equal(junk, orig) {
			break
		}
	}

	if _, err := f.WriteAt(junk, op.Offset); err != nil {
		return fmt.Errorf("writing corruption at %d: %w", op.Offset, err)
	}
	return f.Sync()
}

// JobOptions expresses the corruption as subject job options for the
// mangle stanza of a fault-injection invocation: one random write of
// the mode's overwrite size with verification and any deterministic
// offset replay disabled. Direct I/O is off because a partial
// overwrite is smaller than the device sector size.
func JobOptions(mode Mode, blockSize, partialBytes int64) []string {
	bs := blockSize
	if mode == ModePartial {
		bs = partialBytes
		if bs == 0 {
			bs = DefaultPartialBytes
		}
	}
	return []string{
		"--rw=randwrite",
		"--bs=" + strconv.FormatInt(bs, 10),
		"--number_ios=1",
		"--randrepeat=0",
		"--norandommap=1",
		"--direct=0",
	}
}
