package repository

import (
	"context"
	"fmt"
)

const schema = `
	CREATE EXTENSION IF NOT EXISTS postgis;

	CREATE TABLE IF NOT EXISTS addresses (
		id BIGSERIAL PRIMARY KEY,
		house_number VARCHAR(32) NOT NULL DEFAULT '',
		street VARCHAR(255) NOT NULL DEFAULT '',
		borough VARCHAR(64) NOT NULL DEFAULT '',
		postcode VARCHAR(16) NOT NULL DEFAULT '',
		full_address_tsvector TSVECTOR GENERATED ALWAYS AS (
			to_tsvector('english', house_number || ' ' || street || ' ' || borough || ' ' || postcode)
		) STORED,
		geom GEOGRAPHY(POINT, 4326) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS addresses_geom_idx ON addresses USING GIST (geom);
	CREATE INDEX IF NOT EXISTS addresses_full_address_tsvector_idx ON addresses USING GIN (full_address_tsvector);

	CREATE TABLE IF NOT EXISTS street_features (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(16) NOT NULL,
		properties JSONB NOT NULL DEFAULT '{}',
		geom GEOMETRY(GEOMETRY, 4326) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS street_features_geom_idx ON street_features USING GIST (geom);
	CREATE INDEX IF NOT EXISTS street_features_kind_idx ON street_features (kind);
`

// CreateSchema creates the address and street feature tables if missing.
func (r *Repository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("repository: failed to create schema: %w", err)
	}
	return nil
}
