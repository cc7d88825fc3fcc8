package core

import "errors"

// Error kinds. Every error leaving the engine wraps exactly one of these,
// so callers classify with errors.Is instead of string matching. Field
// level sentinels (ErrInvalidAmount, ErrInvalidDate, ...) wrap
// ErrValidation at definition, which keeps both granularities matchable.
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("bill not found")
	ErrMisconfiguredSchedule = errors.New("misconfigured pay schedule")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrSyncFailure           = errors.New("cloud sync failed")
	ErrImportFailure         = errors.New("import failed")
)
