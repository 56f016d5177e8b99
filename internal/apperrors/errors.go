// Package apperrors provides the typed error taxonomy for the hashing
// pipeline. Every per-item failure carries a stable kind code used in the
// final report, plus an HTTP status for the review API. Use errors.Is() and
// errors.As() to check error types.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure kind codes. They are stable identifiers: reports aggregate on
// them and the API exposes them verbatim.
const (
	KindFileUnreadable    = "file_unreadable"
	KindNotVideo          = "not_video"
	KindDecoderMissing    = "decoder_missing"
	KindDecoderCrashed    = "decoder_crashed"
	KindDurationUnknown   = "duration_unknown"
	KindDurationTooShort  = "duration_too_short"
	KindResolutionTooLow  = "resolution_too_low"
	KindTimeout           = "timeout"
	KindCacheCorrupt      = "cache_corrupt"
	KindResourceExhausted = "resource_exhausted"
)

// AppError is the interface for all typed errors in this package.
type AppError interface {
	error
	Kind() string
	HTTPStatus() int
	Unwrap() error
}

type baseError struct {
	message    string
	kind       string
	httpStatus int
	cause      error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Kind() string    { return e.kind }
func (e *baseError) HTTPStatus() int { return e.httpStatus }
func (e *baseError) Unwrap() error   { return e.cause }

// ItemError is a per-item pipeline failure. It never aborts the run unless
// Fatal is set.
type ItemError struct {
	baseError
	Path string
	// ExitCode carries the decoder exit status for decoder_crashed.
	ExitCode int
	// Fatal marks failures that must abort the whole pipeline.
	Fatal bool
}

func newItemError(kind, path, message string, cause error) *ItemError {
	return &ItemError{
		baseError: baseError{
			message:    message,
			kind:       kind,
			httpStatus: http.StatusUnprocessableEntity,
			cause:      cause,
		},
		Path: path,
	}
}

// NewFileUnreadable reports a file that could not be opened or read.
func NewFileUnreadable(path string, cause error) *ItemError {
	return newItemError(KindFileUnreadable, path, fmt.Sprintf("cannot read %s", path), cause)
}

// NewNotVideo reports a file with no decodable video stream.
func NewNotVideo(path string, cause error) *ItemError {
	return newItemError(KindNotVideo, path, fmt.Sprintf("%s has no video stream", path), cause)
}

// NewDecoderMissing reports an unresolvable decoder binary. This is the one
// per-item condition that aborts the pipeline.
func NewDecoderMissing(cause error) *ItemError {
	e := newItemError(KindDecoderMissing, "", "decoder binary not found", cause)
	e.httpStatus = http.StatusInternalServerError
	e.Fatal = true
	return e
}

// NewDecoderCrashed reports a decoder child that exited abnormally.
func NewDecoderCrashed(path string, exitCode int, cause error) *ItemError {
	e := newItemError(KindDecoderCrashed, path,
		fmt.Sprintf("decoder crashed on %s (exit %d)", path, exitCode), cause)
	e.ExitCode = exitCode
	return e
}

// NewDurationUnknown reports a probe without a usable duration.
func NewDurationUnknown(path string, cause error) *ItemError {
	return newItemError(KindDurationUnknown, path, fmt.Sprintf("unknown duration for %s", path), cause)
}

// NewDurationTooShort reports a video shorter than the sampling contract
// allows.
func NewDurationTooShort(path string, durationMS, requiredMS int64) *ItemError {
	return newItemError(KindDurationTooShort, path,
		fmt.Sprintf("%s is %dms long, need at least %dms", path, durationMS, requiredMS), nil)
}

// NewResolutionTooLow reports source dimensions below the canonical frame
// size.
func NewResolutionTooLow(path string, width, height int) *ItemError {
	return newItemError(KindResolutionTooLow, path,
		fmt.Sprintf("%s is %dx%d, below the 32x32 minimum", path, width, height), nil)
}

// NewTimeout reports a decode that exceeded its deadline.
func NewTimeout(path string, cause error) *ItemError {
	return newItemError(KindTimeout, path, fmt.Sprintf("decoding %s timed out", path), cause)
}

// NewCacheCorrupt reports a cache entry that failed to deserialize. The
// entry is removed and rebuilt; the error only surfaces in logs.
func NewCacheCorrupt(key string, cause error) *ItemError {
	return newItemError(KindCacheCorrupt, "", fmt.Sprintf("corrupt cache entry %s", key), cause)
}

// NewResourceExhausted reports fd or disk exhaustion for one item. Repeated
// occurrences escalate to a pipeline abort in the coordinator.
func NewResourceExhausted(path, message string, cause error) *ItemError {
	e := newItemError(KindResourceExhausted, path, message, cause)
	e.httpStatus = http.StatusInsufficientStorage
	return e
}

// ErrCancelled is the cancellation sentinel. Cancellation is not a failure:
// it is never counted in the per-kind failure totals.
var ErrCancelled = errors.New("operation cancelled")

// ErrScanAlreadyRunning is returned when a scan is requested while one is
// in progress.
var ErrScanAlreadyRunning = &ConflictError{
	baseError: baseError{
		message:    "a scan is already running",
		kind:       "scan_already_running",
		httpStatus: http.StatusConflict,
	},
}

// ConflictError represents a state conflict (e.g. concurrent scan).
type ConflictError struct {
	baseError
}

// NotFoundError represents a missing resource on the review API.
type NotFoundError struct {
	baseError
	Resource string
}

// NewNotFoundError creates a NotFoundError for the named resource.
func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s not found", resource),
			kind:       "not_found",
			httpStatus: http.StatusNotFound,
		},
		Resource: resource,
	}
}

// Kind returns the kind code of err, or "" when err carries none.
func Kind(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return ""
}

// IsFatal reports whether err must abort the pipeline.
func IsFatal(err error) bool {
	var item *ItemError
	return errors.As(err, &item) && item.Fatal
}

// IsCancelled reports whether err is the cancellation sentinel.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// GetHTTPStatus returns the HTTP status code for an error, defaulting to
// 500 for untyped errors.
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
