package service

import (
	"context"
	"errors"
	"fmt"

	"streetclip/internal/models"
	"streetclip/internal/repository"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// CoordinateError is returned for a latitude or longitude out of range.
type CoordinateError struct {
	Lat, Lon float64
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("service: invalid coordinates lat=%f lon=%f", e.Lat, e.Lon)
}

// ReverseGeoCodeService finds the imported address closest to a point
type ReverseGeoCodeService struct {
	repo ReverseGeoCodeRepository
}

// ReverseGeoCodeRepository interface for dependency injection
type ReverseGeoCodeRepository interface {
	FindNearestLocation(ctx context.Context, lat, lon float64) (*models.Location, error)
}

// NewReverseGeoCodeService creates a new reverse geo code service
func NewReverseGeoCodeService(repo ReverseGeoCodeRepository) *ReverseGeoCodeService {
	return &ReverseGeoCodeService{repo: repo}
}

// ReverseGeocode returns the nearest address within 10km, or nil when there
// is none.
func (s *ReverseGeoCodeService) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.NearestAddress, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, &CoordinateError{Lat: lat, Lon: lon}
	}

	location, err := s.repo.FindNearestLocation(ctx, lat, lon)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to find nearest location: %w", err)
	}

	query := orb.Point{lon, lat}
	return &models.NearestAddress{
		Location:       *location,
		DistanceMeters: geo.Distance(query, orb.Point{location.Longitude, location.Latitude}),
	}, nil
}
