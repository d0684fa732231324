package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"newswire/config"
)

// RetryConfig tunes the exponential backoff applied to transient store and
// queue failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
}

// DefaultRetryConfig returns the standard policy, with environment
// overrides for the attempt count and delay bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: config.GetEnvIntOrDefault("RETRY_MAX_ATTEMPTS", config.RetryMaxAttempts),
		BaseDelay:   config.GetEnvDurationOrDefault("RETRY_BASE_DELAY", config.RetryBaseDelay),
		MaxDelay:    config.GetEnvDurationOrDefault("RETRY_MAX_DELAY", config.RetryMaxDelay),
		Factor:      config.RetryBackoffFactor,
		Jitter:      config.RetryJitterFactor,
	}
}

// Retry runs fn until it succeeds, attempts are exhausted, or ctx is done.
// Delays double from BaseDelay up to MaxDelay, with random jitter so
// synchronized workers spread out. The final error wraps fn's last error.
func Retry(ctx context.Context, cfg RetryConfig, op string, fn func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var err error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := delay
		if cfg.Jitter > 0 {
			sleep += time.Duration((rand.Float64()*2 - 1) * cfg.Jitter * float64(delay))
		}
		log.WithFields(log.Fields{
			"op":      op,
			"attempt": attempt,
			"delay":   sleep,
		}).WithError(err).Warn("retrying after transient failure")

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, err)
}
