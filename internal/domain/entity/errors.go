package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks malformed metadata or category lines.
	ErrParse = errors.New("parse error")
	// ErrLookup marks out-of-range indices and unknown label tokens.
	ErrLookup = errors.New("lookup error")
	// ErrInvalidParam marks invalid sampler or transform configuration.
	ErrInvalidParam = errors.New("invalid parameter")
)

// ParseError reports the file and 1-based line that failed to parse.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v (line %q)", e.File, e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
