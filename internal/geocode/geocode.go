package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"streetclip/internal/models"
)

// ErrNoMatch is returned when a provider has no result for an address.
var ErrNoMatch = errors.New("no match for address")

// Provider resolves a free-text address to its best single match.
type Provider interface {
	Geocode(ctx context.Context, address string) (models.AddressPoint, error)
}

// GeocodeError is returned once an address could not be resolved.
type GeocodeError struct {
	Address  string
	Attempts int
	Err      error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocode %q failed after %d attempt(s): %v", e.Address, e.Attempts, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// StatusError is a non-200 answer from a geocoding service.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoder returned HTTP %d", e.StatusCode)
}

// Temporary reports whether the request is worth repeating.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// transient reports whether err is a network failure, a rate limit or a
// server error. Cancellation by the caller and missing matches are final.
func transient(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil || errors.Is(err, ErrNoMatch) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ne net.Error
	return errors.As(err, &ne)
}
