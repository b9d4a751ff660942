package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is returned when a client-supplied file name has no
	// usable base name once directory components are stripped.
	ErrInvalidName = errors.New("invalid file name")
	// ErrNotFound is returned when no stored file matches a lookup.
	ErrNotFound = errors.New("file not found")
	// ErrUnknownCategory is returned for category names outside the fixed set.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrTransferAborted wraps failures reading the inbound stream, which in
	// practice means the client went away mid-upload.
	ErrTransferAborted = errors.New("transfer aborted")
)

// WriteError reports a failure on the local side of a transfer: creating,
// writing or closing the destination file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
