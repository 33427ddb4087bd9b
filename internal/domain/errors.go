package domain

import "errors"

// Error kinds shared across components. Callers classify with errors.Is; call
// sites wrap with fmt.Errorf("...: %w", Err...) to attach context.
var (
	// ErrValidation marks malformed inference output. Retried with backoff
	// up to a bound, then dropped with a log. Never fails a batch.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence marks a failed durable write. Fatal to the triggering
	// call and surfaced synchronously to the producer or pipeline.
	ErrPersistence = errors.New("persistence failed")

	// ErrConcurrencyConflict marks a lost revision race after the store's
	// bounded compare-and-swap retries are exhausted.
	ErrConcurrencyConflict = errors.New("concurrent revision conflict")

	// ErrConfiguration marks invalid decision-engine configuration or
	// out-of-range inputs. Fatal, never silently clamped.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrSignalUnavailable marks a missing attention signal source.
	// Downgraded to a neutral default, non-fatal.
	ErrSignalUnavailable = errors.New("signal unavailable")

	// ErrQueueClosed is returned by queue operations after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)
