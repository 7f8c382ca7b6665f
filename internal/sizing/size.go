// Package sizing provides overflow-checked conversions between the size
// types used by archive entries, files and compiled-code headers.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it does not fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it does not fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Low32 keeps the low 32 bits of v. Compiled-code headers store source
// sizes and timestamps modulo 2^32.
func Low32(v int64) uint32 {
	return uint32(v & 0xFFFFFFFF) //nolint:gosec // truncation is the point
}
