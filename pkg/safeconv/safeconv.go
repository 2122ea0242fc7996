// Package safeconv converts between the signed counts used by treechurn and
// the unsigned indices libgit2 hands out.
package safeconv

// MaxInt is the largest int on this platform.
const MaxInt = int(^uint(0) >> 1)

// MustUintToInt converts v to int and panics when it does not fit.
func MustUintToInt(v uint) int {
	if v > uint(MaxInt) {
		panic("safeconv: uint to int overflow")
	}

	return int(v)
}

// MustIntToUint converts v to uint and panics when it is negative.
func MustIntToUint(v int) uint {
	if v < 0 {
		panic("safeconv: negative int to uint conversion")
	}

	return uint(v)
}
