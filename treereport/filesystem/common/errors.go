package common

import (
	"errors"
	"fmt"
	"io/fs"
)

// Common error types used across the scanner packages
var (
	ErrInvalidNumber   = errors.New("invalid number format")
	ErrInvalidEncoding = errors.New("count line is not valid UTF-8")
	ErrIsDirectory     = errors.New("is a directory")
	ErrRootUnreadable  = errors.New("cannot list scan root")
	ErrInvalidOptions  = errors.New("invalid options")
)

// ErrorKind is the closed set of per-entry failure classes.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindFormat
	KindPermission
	KindOther
	KindWrite
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindFormat:
		return "format"
	case KindPermission:
		return "permission denied"
	case KindOther:
		return "other"
	case KindWrite:
		return "write failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// EntryError is a failure confined to one chunk directory.
type EntryError struct {
	Dir  string
	Kind ErrorKind
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Dir, e.Kind, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Message returns the underlying error text shown to the user.
func (e *EntryError) Message() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

// ClassifyReadError maps an error from reading a count record onto a kind.
func ClassifyReadError(err error) ErrorKind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, ErrInvalidNumber):
		return KindFormat
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	default:
		return KindOther
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", context, err)
}
