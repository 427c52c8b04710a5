package service

import (
	"errors"

	logger "fincoach-backend/pkg/logging"
)

// Error kinds surfaced by the engine. ErrNotFound and ErrValidation are
// user-visible; everything transient is retried and then degraded, never
// propagated to the user-facing request that triggered it.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrTransient  = errors.New("transient storage failure")
)

// withRetry re-runs fn up to attempts times. Non-transient errors abort
// immediately.
func withRetry(attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return err
		}
		logger.Warn("transient storage failure, retrying (%d/%d): %v", i+1, attempts, err)
	}
	return ErrTransient
}
