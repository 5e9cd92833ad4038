package viewer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned by any query operation attempted before a
	// successful Load or after Close. Recoverable: the caller reloads.
	ErrNotLoaded = errors.New("no document loaded")

	// ErrFileNotFound means the source path was missing at load time.
	ErrFileNotFound = errors.New("file not found")

	// ErrPageNotFound covers both an out-of-range page/spine index and a
	// page whose content could not be decoded. The document stays loaded.
	ErrPageNotFound = errors.New("page not found")
)

// ErrContentDecode marks a page whose bytes exist but do not decode. It
// matches ErrPageNotFound, so callers that only care about absence need no
// extra check.
var ErrContentDecode = fmt.Errorf("%w: content not decodable", ErrPageNotFound)

// FormatError means the container or document structure could not be
// parsed. Fatal to the load attempt; no partial document is exposed.
type FormatError struct {
	Path   string
	Reason string
	cause  error
}

func (e *FormatError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("format error in %s: %s: %v", e.Path, e.Reason, e.cause)
	}
	return fmt.Sprintf("format error in %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.cause
}

func newFormatError(path, reason string, cause error) *FormatError {
	return &FormatError{Path: path, Reason: reason, cause: cause}
}
