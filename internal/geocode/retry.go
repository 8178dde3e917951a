package geocode

import (
	"context"
	"time"

	"streetclip/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Retrying repeats transient failures of the wrapped provider with
// exponential backoff.
type Retrying struct {
	provider    Provider
	maxAttempts int
	initial     time.Duration
}

// NewRetrying allows up to maxAttempts calls per address, waiting initial
// before the second one and growing from there.
func NewRetrying(p Provider, maxAttempts int, initial time.Duration) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrying{provider: p, maxAttempts: maxAttempts, initial: initial}
}

// Geocode returns a GeocodeError when no attempt produced a match.
func (r *Retrying) Geocode(ctx context.Context, address string) (models.AddressPoint, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxAttempts-1)), ctx)

	var (
		point    models.AddressPoint
		attempts int
	)
	op := func() error {
		attempts++
		p, err := r.provider.Geocode(ctx, address)
		if err != nil {
			if !transient(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		point = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).
			Str("address", address).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("geocode attempt failed")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return models.AddressPoint{}, &GeocodeError{Address: address, Attempts: attempts, Err: err}
	}
	return point, nil
}
