package pdfops

import (
	"errors"
	"fmt"

	"github.com/local/pdftoolkit/internal/pagerange"
)

var (
	// ErrInvalidInput covers wrong file types, too few files, bad angles and unreadable images.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidSelection is returned when a page-range expression selects nothing.
	ErrInvalidSelection = pagerange.ErrInvalidSelection
	// ErrProcessing means a document could not be decoded, assembled or encoded.
	ErrProcessing = errors.New("processing error")
)

// OpError describes a failed toolkit operation. It matches its Kind with
// errors.Is and unwraps to the underlying cause.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == e.Kind }

// Detail is the caller-facing description of err.
func Detail(err error) string {
	var opErr *OpError
	if !errors.As(err, &opErr) {
		return err.Error()
	}
	if opErr.Kind == ErrProcessing && opErr.Err != nil {
		return fmt.Sprintf("%s: %v", opErr.Msg, opErr.Err)
	}
	return opErr.Msg
}

func invalidInput(op, msg string) error {
	return &OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func invalidSelection(op string, err error) error {
	return &OpError{Op: op, Kind: ErrInvalidSelection, Msg: err.Error(), Err: err}
}

func processing(op, msg string, err error) error {
	return &OpError{Op: op, Kind: ErrProcessing, Msg: msg, Err: err}
}
