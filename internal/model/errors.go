package model

import "errors"

// Sentinel errors for the error taxonomy in spec.md §7. Callers wrap
// these with fmt.Errorf("...: %w", ErrX) so errors.Is still matches.
var (
	// ErrInputMalformed marks a flow event that failed schema validation.
	ErrInputMalformed = errors.New("flow event malformed")

	// ErrStoreUnavailable marks a graph store write that failed after
	// exhausting its retry budget.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrDetectorPanic marks a detector or ML call that panicked and was
	// recovered.
	ErrDetectorPanic = errors.New("detector panicked")

	// ErrProbeSkipped marks an active probe that a safety guard blocked.
	ErrProbeSkipped = errors.New("probe skipped by safety guard")

	// ErrProbeFailed marks an active probe whose I/O failed or timed out.
	ErrProbeFailed = errors.New("probe failed")

	// ErrNotFound marks a lookup that found no matching resource.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an attempt to create a resource that already
	// exists in a conflicting form.
	ErrConflict = errors.New("conflict")
)
