package render

import (
	"encoding/json"
	"io"

	"streetclip/internal/models"

	"github.com/paulmach/orb/geojson"
)

// GeoJSON writes all layers as one WGS84 FeatureCollection. Each feature
// carries its data kind in the "kind" property.
func GeoJSON(w io.Writer, layers []models.Layer) error {
	out := geojson.NewFeatureCollection()
	for _, l := range layers {
		fc, err := toWGS84(l)
		if err != nil {
			return err
		}
		for _, f := range fc.Features {
			f.Properties["kind"] = string(l.Kind)
			out.Append(f)
		}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return &RenderError{Format: "geojson", Reason: "encode features", Err: err}
	}
	_, err = w.Write(raw)
	return err
}
