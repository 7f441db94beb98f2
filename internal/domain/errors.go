package domain

import "errors"

// Sentinel errors for the validation core. Expected data absence (missing
// rate, missing provider) is signalled with a typed not-found result, not an
// error; these sentinels cover the genuinely exceptional paths.
var (
	// ErrNotFound is returned by gateway lookups that must distinguish a
	// missing row from an infrastructure failure.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable marks a reference store that cannot be reached.
	// This is batch-fatal: callers should stop rather than record thousands
	// of identical per-claim failures.
	ErrStoreUnavailable = errors.New("reference store unavailable")

	// ErrCorruptConfiguration marks a bundle or equivalence configuration
	// file that exists but cannot be parsed. A missing file is not an error.
	ErrCorruptConfiguration = errors.New("corrupt configuration file")

	// ErrInvalidClaim marks claim input the intake layer cannot represent
	// at all (not merely a malformed line, which is skipped).
	ErrInvalidClaim = errors.New("invalid claim input")
)
