package analyzer

import "errors"

var (
	// ErrInvalidWindowLength is returned for a non-positive window length.
	ErrInvalidWindowLength = errors.New("window length must be positive")

	// ErrInvalidThreshold is returned for a non-positive z-score threshold.
	ErrInvalidThreshold = errors.New("z threshold must be positive")

	// ErrInvalidLagSize is returned for a non-positive lag size.
	ErrInvalidLagSize = errors.New("lag size must be positive")

	// ErrInvalidRetention is returned when a history cap cannot hold a full
	// baseline plus the window under test.
	ErrInvalidRetention = errors.New("window retention must exceed lag size")

	// ErrMalformedEvent is returned when an event lacks the time position its
	// mode requires or carries a negative count. The event is dropped.
	ErrMalformedEvent = errors.New("malformed count event")

	// ErrModeUnknown is returned when neither the event nor the stream
	// declares a clock mode. The event is dropped.
	ErrModeUnknown = errors.New("stream mode unknown")

	// ErrSpikeNotFound is returned when annotating a spike that does not exist.
	ErrSpikeNotFound = errors.New("spike not found")

	// ErrEmptyStreamID is returned for calls without a stream identifier.
	ErrEmptyStreamID = errors.New("stream id is empty")
)
