package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"streetclip/internal/projection"

	"github.com/paulmach/orb/geojson"
)

// DatasetLoadError reports a source layer that cannot be read or carries no
// recognizable geometry.
type DatasetLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DatasetLoadError) Error() string {
	msg := "dataset: " + e.Reason
	if e.Path != "" {
		msg = fmt.Sprintf("dataset %s: %s", e.Path, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DatasetLoadError) Unwrap() error { return e.Err }

// Reader streams the features of a geometry layer.
type Reader interface {
	// EPSG is the coordinate reference system of the geometries, 0 when unknown.
	EPSG() int

	// Next returns the next feature, or io.EOF after the last one. A feature
	// whose geometry could not be decoded is returned with a nil Geometry.
	Next() (*geojson.Feature, error)

	Close() error
}

// Open picks a reader by file extension. A positive epsg overrides the CRS
// declared by the source.
func Open(path string, epsg int) (Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DatasetLoadError{Path: path, Reason: "cannot access source", Err: err}
	}

	var (
		r   Reader
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		r, err = OpenShapefile(path)
	case ".geojson", ".json":
		r, err = OpenGeoJSON(path)
	default:
		return nil, &DatasetLoadError{Path: path, Reason: "unsupported file type"}
	}
	if err != nil {
		return nil, err
	}

	if epsg > 0 {
		return &crsOverride{Reader: r, epsg: epsg}, nil
	}
	return r, nil
}

type crsOverride struct {
	Reader
	epsg int
}

func (c *crsOverride) EPSG() int { return c.epsg }

// SliceReader serves features held in memory.
type SliceReader struct {
	epsg     int
	features []*geojson.Feature
	pos      int
}

// NewSliceReader returns a Reader over fs. The features are not copied.
func NewSliceReader(epsg int, fs []*geojson.Feature) *SliceReader {
	return &SliceReader{epsg: epsg, features: fs}
}

func (s *SliceReader) EPSG() int { return s.epsg }

func (s *SliceReader) Next() (*geojson.Feature, error) {
	if s.pos >= len(s.features) {
		return nil, io.EOF
	}
	f := s.features[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceReader) Close() error { return nil }

// Reprojected wraps a Reader and transforms every geometry into another CRS.
type Reprojected struct {
	Reader
	tr   *projection.Transformer
	epsg int
}

// Reproject returns a Reader yielding the features of r in epsg. The source
// features are not mutated.
func Reproject(r Reader, epsg int) (*Reprojected, error) {
	tr, err := projection.NewTransformer(r.EPSG(), epsg)
	if err != nil {
		return nil, fmt.Errorf("dataset: reproject layer: %w", err)
	}
	return &Reprojected{Reader: r, tr: tr, epsg: epsg}, nil
}

func (r *Reprojected) EPSG() int { return r.epsg }

func (r *Reprojected) Next() (*geojson.Feature, error) {
	f, err := r.Reader.Next()
	if err != nil || f == nil || f.Geometry == nil {
		return f, err
	}
	out := geojson.NewFeature(r.tr.Geometry(f.Geometry))
	out.ID = f.ID
	for k, v := range f.Properties {
		out.Properties[k] = v
	}
	return out, nil
}
