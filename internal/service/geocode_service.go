package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"streetclip/internal/geocode"
	"streetclip/internal/models"
)

// ErrEmptyAddress is returned for a blank address query.
var ErrEmptyAddress = errors.New("service: address cannot be empty")

// GeoCodeService resolves free-text addresses to a single point
type GeoCodeService struct {
	geocoder geocode.Provider
}

// NewGeoCodeService creates a new geo code service
func NewGeoCodeService(geocoder geocode.Provider) *GeoCodeService {
	return &GeoCodeService{geocoder: geocoder}
}

// Geocode returns the best match for address
func (s *GeoCodeService) Geocode(ctx context.Context, address string) (*models.AddressPoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	point, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("service: failed to geocode address: %w", err)
	}

	return &point, nil
}
