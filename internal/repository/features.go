package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"streetclip/internal/models"
	"streetclip/internal/projection"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// FeatureReader streams stored street features. Geometries are in EPSG:4326.
type FeatureReader struct {
	rows pgx.Rows
}

// Features returns the stored features of kind whose bounding box
// intersects b (longitude/latitude), in insertion order.
func (r *Repository) Features(ctx context.Context, kind models.DataKind, b orb.Bound) (*FeatureReader, error) {
	sql := `
		SELECT id, properties, ST_AsBinary(geom)
		FROM street_features
		WHERE kind = $1 AND geom && ST_MakeEnvelope($2, $3, $4, $5, 4326)
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, sql, string(kind), b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query features: %w", err)
	}
	return &FeatureReader{rows: rows}, nil
}

func (f *FeatureReader) EPSG() int { return projection.WGS84 }

func (f *FeatureReader) Next() (*geojson.Feature, error) {
	if !f.rows.Next() {
		if err := f.rows.Err(); err != nil {
			return nil, fmt.Errorf("repository: error iterating features: %w", err)
		}
		return nil, io.EOF
	}

	var (
		id    int64
		props map[string]any
		raw   []byte
	)
	if err := f.rows.Scan(&id, &props, &raw); err != nil {
		return nil, fmt.Errorf("repository: failed to scan feature: %w", err)
	}

	g, err := wkb.Unmarshal(raw)
	if err != nil {
		// Leave it to the clipper to discard the feature.
		g = nil
	}
	feature := geojson.NewFeature(g)
	feature.ID = id
	for k, v := range props {
		feature.Properties[k] = v
	}
	return feature, nil
}

func (f *FeatureReader) Close() error {
	f.rows.Close()
	return nil
}

// FeatureSource is read by CopyFeatures until io.EOF.
type FeatureSource interface {
	Next() (*geojson.Feature, error)
}

// CopyFeatures bulk loads features of kind. Geometries must already be in
// EPSG:4326; features without geometry are skipped.
func (r *Repository) CopyFeatures(ctx context.Context, kind models.DataKind, src FeatureSource) (int64, error) {
	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"street_features"},
		[]string{"kind", "properties", "geom"},
		&featureCopySource{kind: string(kind), src: src},
	)
	if err != nil {
		return n, fmt.Errorf("repository: failed to copy features: %w", err)
	}
	return n, nil
}

type featureCopySource struct {
	kind string
	src  FeatureSource
	row  []any
	err  error
}

func (s *featureCopySource) Next() bool {
	for {
		f, err := s.src.Next()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		if f == nil || f.Geometry == nil {
			continue
		}

		geom, err := ewkb.Marshal(f.Geometry, projection.WGS84)
		if err != nil {
			s.err = fmt.Errorf("encode feature %v: %w", f.ID, err)
			return false
		}
		props := map[string]any(f.Properties)
		if props == nil {
			props = map[string]any{}
		}
		s.row = []any{s.kind, props, geom}
		return true
	}
}

func (s *featureCopySource) Values() ([]any, error) { return s.row, nil }

func (s *featureCopySource) Err() error { return s.err }

// CopyLocations bulk loads address points.
func (r *Repository) CopyLocations(ctx context.Context, locations []models.Location) (int64, error) {
	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"addresses"},
		[]string{"house_number", "street", "borough", "postcode", "geom"},
		pgx.CopyFromSlice(len(locations), func(i int) ([]any, error) {
			l := locations[i]
			geom, err := ewkb.Marshal(orb.Point{l.Longitude, l.Latitude}, projection.WGS84)
			if err != nil {
				return nil, err
			}
			return []any{l.HouseNumber, l.Street, l.Borough, l.Postcode, geom}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("repository: failed to copy locations: %w", err)
	}
	return n, nil
}

// CountFeatures returns the number of stored features of kind.
func (r *Repository) CountFeatures(ctx context.Context, kind models.DataKind) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM street_features WHERE kind = $1", string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count features: %w", err)
	}
	return n, nil
}

// CountLocations returns the number of stored address points.
func (r *Repository) CountLocations(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM addresses").Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: failed to count locations: %w", err)
	}
	return n, nil
}

// SampleGeometry returns one stored geometry of table as WKT.
func (r *Repository) SampleGeometry(ctx context.Context, table string) (string, error) {
	var wkt string
	sql := "SELECT ST_AsText(geom) FROM " + pgx.Identifier{table}.Sanitize() + " LIMIT 1"
	if err := r.db.QueryRow(ctx, sql).Scan(&wkt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("repository: failed to sample geometry: %w", err)
	}
	return wkt, nil
}
