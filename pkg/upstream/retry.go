package upstream

import (
	"context"
	"math/rand"
	"time"

	"github.com/codelens-ai/codelens/pkg/config"
)

const (
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultBackoffFactor  = 2.0
)

// sleepBackoff waits before the next retry attempt using exponential
// backoff with jitter, returning early if ctx is cancelled. attempt is
// zero-based: the wait grows by the backoff factor on each retry.
func sleepBackoff(ctx context.Context, cfg config.UpstreamConfig, attempt int) error {
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	factor := cfg.BackoffFactor
	if factor <= 1 {
		factor = defaultBackoffFactor
	}

	backoff := initial
	for i := 0; i < attempt && backoff < maxBackoff; i++ {
		backoff = time.Duration(float64(backoff) * factor)
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	if cfg.Jitter > 0 {
		delta := float64(backoff) * cfg.Jitter
		backoff = time.Duration(float64(backoff) + (rand.Float64()*2*delta - delta))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}
