package geocode

import (
	"context"
	"errors"

	"streetclip/internal/models"

	"github.com/rs/zerolog/log"
)

// Chain asks each provider in turn and returns the first match.
type Chain []Provider

func (c Chain) Geocode(ctx context.Context, address string) (models.AddressPoint, error) {
	err := error(&GeocodeError{Address: address, Err: ErrNoMatch})
	for _, p := range c {
		point, perr := p.Geocode(ctx, address)
		if perr == nil {
			return point, nil
		}
		if ctx.Err() != nil {
			return models.AddressPoint{}, &GeocodeError{Address: address, Attempts: 1, Err: ctx.Err()}
		}
		if !errors.Is(perr, ErrNoMatch) {
			log.Warn().Err(perr).Str("address", address).Msg("geocode provider failed, trying next")
		}
		err = perr
	}

	var gerr *GeocodeError
	if !errors.As(err, &gerr) {
		err = &GeocodeError{Address: address, Attempts: 1, Err: err}
	}
	return models.AddressPoint{}, err
}
