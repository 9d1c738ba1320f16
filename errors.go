package forest

import "errors"

// Precondition violations: a caller handed the package a malformed
// argument. These are never returned; they are the value recovered
// callers see if they choose to recover() around a call, since the
// functions that can fail this way panic directly (matching the
// teacher's own panic(fmt.Sprintf(...)) discipline for programmer
// errors rather than runtime conditions).
var (
	ErrInvalidQuadrant       = errors.New("forest: invalid quadrant")
	ErrMalformedConnectivity = errors.New("forest: malformed connectivity")
	ErrDataSizeMismatch      = errors.New("forest: payload size mismatch")
	ErrQuadrantOverflow      = errors.New("forest: quadrant coordinate overflow")
)

// Runtime conditions: failures that depend on the state of other ranks
// or on data in motion, always returned rather than panicked.
var (
	ErrTransport     = errors.New("forest: transport failure")
	ErrWeightOverflow = errors.New("forest: cumulative weight overflow")
)
