package scan

import "errors"

var (
	// ErrScanFailed is the generic extraction failure shown to users; it wraps the cause.
	ErrScanFailed   = errors.New("extraction failed")
	ErrStaleScan    = errors.New("scan superseded by reset or a newer scan")
	ErrNotReady     = errors.New("session is not ready")
	ErrItemNotFound = errors.New("item not found")
	ErrEmptyCrop    = errors.New("item has an empty crop")
)
