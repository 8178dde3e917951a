package repository

import (
	"context"
	"errors"
	"fmt"

	"streetclip/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no address lies near the requested point.
var ErrNotFound = errors.New("repository: no location found near coordinates")

// DB is the subset of pgxpool.Pool and pgx.Conn used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

var (
	_ DB = (*pgxpool.Pool)(nil)
	_ DB = (*pgx.Conn)(nil)
)

// Repository implements address search and street feature storage on PostGIS
type Repository struct {
	db DB
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// SearchLocationsByText performs a full-text search on the addresses table
func (r *Repository) SearchLocationsByText(ctx context.Context, query string) ([]models.Location, error) {
	sql := `
		SELECT
			id,
			house_number,
			street,
			borough,
			postcode,
			ST_Y(geom::geometry) as latitude,
			ST_X(geom::geometry) as longitude
		FROM addresses
		WHERE full_address_tsvector @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(full_address_tsvector, plainto_tsquery('english', $1)) DESC, id
		LIMIT 10
	`

	rows, err := r.db.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute search query: %w", err)
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var loc models.Location
		err := rows.Scan(
			&loc.ID,
			&loc.HouseNumber,
			&loc.Street,
			&loc.Borough,
			&loc.Postcode,
			&loc.Latitude,
			&loc.Longitude,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return locations, nil
}

// FindNearestLocation performs a spatial query to find the nearest address to the given coordinates
func (r *Repository) FindNearestLocation(ctx context.Context, lat, lon float64) (*models.Location, error) {
	sql := `
		SELECT
			id,
			house_number,
			street,
			borough,
			postcode,
			ST_Y(geom::geometry) as latitude,
			ST_X(geom::geometry) as longitude
		FROM addresses
		WHERE ST_DWithin(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, 10000) -- Within 10km
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography
		LIMIT 1
	`

	var loc models.Location
	err := r.db.QueryRow(ctx, sql, lat, lon).Scan(
		&loc.ID,
		&loc.HouseNumber,
		&loc.Street,
		&loc.Borough,
		&loc.Postcode,
		&loc.Latitude,
		&loc.Longitude,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to execute spatial query: %w", err)
	}

	return &loc, nil
}
