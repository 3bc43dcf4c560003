package errors

import "net/http"

var (
	ErrDataNotLoaded = New(
		"DATA_NOT_LOADED",
		"Permit datasets are not loaded yet",
		http.StatusServiceUnavailable,
	)

	ErrInvalidWeekIndex = New(
		"INVALID_WEEK_INDEX",
		"Week index does not match any available week",
		http.StatusBadRequest,
	)

	ErrInvalidFilter = New(
		"INVALID_FILTER",
		"Invalid filter parameters",
		http.StatusBadRequest,
	)

	ErrReloadFailed = New(
		"RELOAD_FAILED",
		"Dataset reload failed",
		http.StatusBadGateway,
	)

	ErrDatabaseError = New(
		"DATABASE_ERROR",
		"Database operation failed",
		http.StatusInternalServerError,
	)

	ErrCacheError = New(
		"CACHE_ERROR",
		"Cache operation failed",
		http.StatusInternalServerError,
	)

	ErrInvalidRequest = New(
		"INVALID_REQUEST",
		"Invalid request parameters",
		http.StatusBadRequest,
	)

	ErrInternalServer = New(
		"INTERNAL_SERVER_ERROR",
		"Internal server error",
		http.StatusInternalServerError,
	)
)
