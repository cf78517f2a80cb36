package dataflow

import "github.com/pkg/errors"

var (
	// ErrUnsupportedOperation is raised for operations that must be lowered
	// into control flow before analysis.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrInsufficientStack is raised when operations or calls nest deeper
	// than the configured bound.
	ErrInsufficientStack = errors.New("insufficient stack to continue the analysis")
)
