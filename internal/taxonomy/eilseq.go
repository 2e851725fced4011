package taxonomy

// illegalByteSeq maps a GOOS identifier to the numeric error code the
// platform uses for a detected data-integrity violation (EILSEQ on
// POSIX systems). Built once; consulted by the failure-phase rule.
var illegalByteSeq = map[string]int{
	"linux":   84,
	"darwin":  92,
	"windows": 42,
}

// IllegalByteSeq returns the illegal-byte-sequence error code for the
// given OS identifier. The second return is false for platforms the
// harness does not know about.
func IllegalByteSeq(goos string) (int, bool) {
	code, ok := illegalByteSeq[goos]
	return code, ok
}
