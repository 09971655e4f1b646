package digest

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors used for classification across subsystems.
var (
	// ErrSourceUnavailable covers network failures, timeouts and 5xx
	// responses from a source API. Retryable with backoff.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceRateLimited covers 429/quota responses. Retryable with backoff.
	ErrSourceRateLimited = errors.New("source rate limited")

	// ErrRunNotFound is returned by the run registry for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")

	// ErrConfigNotFound is returned by config stores for unknown config IDs.
	ErrConfigNotFound = errors.New("search config not found")
)

// ConfigError marks a SearchConfig that cannot produce a valid query.
// It is never retried; the run aborts immediately.
type ConfigError struct {
	ConfigID uuid.UUID
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid search config %s: %s", e.ConfigID, e.Reason)
}

// Retryable reports whether an error is worth another fetch attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrSourceRateLimited)
}
