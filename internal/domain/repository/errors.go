package repository

import "errors"

// Failure kinds shared by adapters and the pipeline. Adapters wrap these with %w;
// callers branch with errors.Is.
var (
	// ErrAuth means the provider credential is missing or rejected. Never retried.
	ErrAuth = errors.New("market data: authentication failed")
	// ErrNoData means the provider has nothing in the requested range.
	ErrNoData = errors.New("market data: no data for range")
	// ErrTransient covers rate limiting, 5xx responses and transport failures.
	ErrTransient = errors.New("market data: transient failure")
	// ErrMalformed means a response or stored object is missing required fields.
	ErrMalformed = errors.New("malformed data")
	// ErrConflict means a version-guarded write lost against a concurrent writer.
	ErrConflict = errors.New("storage: version conflict")
	// ErrNotFound means the requested object does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrRunInProgress means another invocation holds the run lock.
	ErrRunInProgress = errors.New("pipeline: run already in progress")
)
