package geocode

import (
	"context"
	"fmt"
	"strings"

	"streetclip/internal/models"
)

// ProviderLocal names results that came from the imported address table.
const ProviderLocal = "local"

// AddressSearcher runs a full-text search over imported address points.
type AddressSearcher interface {
	SearchLocationsByText(ctx context.Context, query string) ([]models.Location, error)
}

// Local resolves addresses against the PostGIS address table.
type Local struct {
	repo AddressSearcher
}

func NewLocal(repo AddressSearcher) *Local {
	return &Local{repo: repo}
}

// Geocode returns the best ranked row.
func (l *Local) Geocode(ctx context.Context, address string) (models.AddressPoint, error) {
	locations, err := l.repo.SearchLocationsByText(ctx, address)
	if err != nil {
		return models.AddressPoint{}, fmt.Errorf("local: %w", err)
	}
	if len(locations) == 0 {
		return models.AddressPoint{}, ErrNoMatch
	}

	loc := locations[0]
	return models.AddressPoint{
		Query:       address,
		DisplayName: strings.Join(nonEmpty(loc.HouseNumber, loc.Street, loc.Borough, loc.Postcode), ", "),
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		Provider:    ProviderLocal,
	}, nil
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
