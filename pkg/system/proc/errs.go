package proc

import "errors"

var (
	// ErrMalformedInput indicates that a counter line had fewer fields than
	// the fixed layout requires, or a required field was not an integer. It
	// means the platform's format disagrees with this package, not that a
	// single read went wrong.
	ErrMalformedInput = errors.New("proc: malformed input")

	// ErrNotFound indicates that a process disappeared between enumeration
	// and the read of one of its files. Callers drop the process from the
	// current sample.
	ErrNotFound = errors.New("proc: process not found")
)
