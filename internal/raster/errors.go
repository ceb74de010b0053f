package raster

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by loading, saving and transforms.
var (
	ErrDecode          = errors.New("decode error")
	ErrEncode          = errors.New("encode error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ProcessingError records which stage failed. It matches both its Kind and the
// underlying cause with errors.Is.
type ProcessingError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Invalidf builds an InvalidArgument error for stage.
func Invalidf(stage, format string, args ...any) error {
	return &ProcessingError{Stage: stage, Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}
