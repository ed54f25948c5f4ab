package telemetry

import (
	"errors"

	"github.com/ja7ad/proctop/pkg/system/proc"
)

var (
	// ErrIndeterminate indicates well-formed input for which the arithmetic
	// has no meaningful answer: no elapsed ticks, a non-positive process age,
	// or a counter that moved backward. Retrying on the next poll recovers.
	ErrIndeterminate = errors.New("telemetry: indeterminate utilization")

	// ErrMalformedInput is proc.ErrMalformedInput, re-exported so callers of
	// this package need not import proc to classify errors.
	ErrMalformedInput = proc.ErrMalformedInput

	// ErrNotFound is proc.ErrNotFound, re-exported.
	ErrNotFound = proc.ErrNotFound
)
