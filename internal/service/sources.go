package service

import (
	"context"

	"streetclip/internal/config"
	"streetclip/internal/dataset"
	"streetclip/internal/models"
	"streetclip/internal/projection"
	"streetclip/internal/repository"

	"github.com/paulmach/orb"
)

// LayerSource opens the street layer of a data kind. near is the area of
// interest in longitude/latitude; a source may use it to skip far features.
type LayerSource interface {
	Open(ctx context.Context, kind models.DataKind, near orb.Bound) (dataset.Reader, error)
}

// FileSource streams the configured dataset file on every run.
type FileSource struct {
	datasets config.DatasetsConfig
}

func NewFileSource(datasets config.DatasetsConfig) *FileSource {
	return &FileSource{datasets: datasets}
}

func (s *FileSource) Open(_ context.Context, kind models.DataKind, _ orb.Bound) (dataset.Reader, error) {
	ds := s.datasets.For(kind)
	if ds.Path == "" {
		return nil, &dataset.DatasetLoadError{Reason: "no dataset configured for " + string(kind)}
	}
	return dataset.Open(ds.Path, ds.EPSG)
}

// IndexSource serves layers loaded once into memory.
type IndexSource map[models.DataKind]*dataset.Index

func (s IndexSource) Open(_ context.Context, kind models.DataKind, near orb.Bound) (dataset.Reader, error) {
	idx, ok := s[kind]
	if !ok {
		return nil, &dataset.DatasetLoadError{Reason: "layer " + string(kind) + " is not loaded"}
	}
	tr, err := projection.NewTransformer(projection.WGS84, idx.EPSG())
	if err != nil {
		return nil, err
	}
	return idx.Query(tr.Bound(near)), nil
}

// FeatureStore reads street features imported into PostGIS.
type FeatureStore interface {
	Features(ctx context.Context, kind models.DataKind, b orb.Bound) (*repository.FeatureReader, error)
}

// PostGISSource reads layers from the street_features table.
type PostGISSource struct {
	store FeatureStore
}

func NewPostGISSource(store FeatureStore) *PostGISSource {
	return &PostGISSource{store: store}
}

func (s *PostGISSource) Open(ctx context.Context, kind models.DataKind, near orb.Bound) (dataset.Reader, error) {
	r, err := s.store.Features(ctx, kind, near)
	if err != nil {
		return nil, &dataset.DatasetLoadError{Path: "street_features", Reason: "query failed", Err: err}
	}
	return r, nil
}

// MixedSource serves kinds loaded in Primary from memory and every other
// kind from Fallback.
type MixedSource struct {
	Primary  IndexSource
	Fallback LayerSource
}

func (s MixedSource) Open(ctx context.Context, kind models.DataKind, near orb.Bound) (dataset.Reader, error) {
	if _, ok := s.Primary[kind]; ok || s.Fallback == nil {
		return s.Primary.Open(ctx, kind, near)
	}
	return s.Fallback.Open(ctx, kind, near)
}
