package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"

	"streetclip/internal/geometry"
	"streetclip/internal/projection"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// ClipStats counts what happened to the features of a source layer.
type ClipStats struct {
	Read    int `json:"read"`
	Invalid int `json:"invalid"`
	Outside int `json:"outside"`
	Kept    int `json:"kept"`
}

// ClipResult is the clipped subset of a layer, in the buffer's CRS.
type ClipResult struct {
	EPSG     int
	Features *geojson.FeatureCollection
	Stats    ClipStats
}

// Clipper intersects a streamed layer with a search buffer.
type Clipper struct {
	segments int
}

// NewClipper returns a Clipper whose polygon clipping uses an inscribed
// buffer polygon with the given vertex count.
func NewClipper(segments int) *Clipper {
	if segments <= 0 {
		segments = geometry.DefaultSegments
	}
	return &Clipper{segments: segments}
}

// Clip reads every feature of r, reprojects it into bufferEPSG, and keeps
// the part inside buf. Invalid features and features that clip to nothing
// are dropped without being retained.
func (c *Clipper) Clip(ctx context.Context, r Reader, buf *geometry.Buffer, bufferEPSG int) (*ClipResult, error) {
	tr, err := projection.NewTransformer(r.EPSG(), bufferEPSG)
	if err != nil {
		return nil, fmt.Errorf("dataset: reproject layer: %w", err)
	}

	clip := geometry.NewClipper(buf, c.segments)
	// Cheap rejection in the source CRS before reprojecting each feature.
	srcBound := tr.Inverse().Bound(buf.Bound())
	srcBound = srcBound.Pad(0.01 * (srcBound.Max[0] - srcBound.Min[0]))

	res := &ClipResult{EPSG: bufferEPSG, Features: geojson.NewFeatureCollection()}
	for {
		if res.Stats.Read%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		res.Stats.Read++

		if f == nil || !geometry.Valid(f.Geometry) {
			res.Stats.Invalid++
			continue
		}
		if !f.Geometry.Bound().Intersects(srcBound) {
			res.Stats.Outside++
			continue
		}

		clipped := clip.Clip(tr.Geometry(f.Geometry))
		if !geometry.Valid(clipped) {
			res.Stats.Outside++
			continue
		}

		out := geojson.NewFeature(clipped)
		out.ID = f.ID
		for k, v := range f.Properties {
			out.Properties[k] = v
		}
		res.Features.Append(out)
		res.Stats.Kept++
	}

	log.Debug().
		Int("read", res.Stats.Read).
		Int("invalid", res.Stats.Invalid).
		Int("outside", res.Stats.Outside).
		Int("kept", res.Stats.Kept).
		Msg("layer clipped")

	return res, nil
}
