package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"streetclip/internal/models"
	"streetclip/internal/projection"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

//go:embed templates/map.html.tmpl
var templates embed.FS

const (
	// DefaultZoom is the initial zoom level of the interactive map.
	DefaultZoom = 16

	featureColor  = "blue"
	featureWeight = 2
)

var mapTemplate = template.Must(template.ParseFS(templates, "templates/map.html.tmpl"))

// MapView is everything drawn on the interactive map.
type MapView struct {
	Address models.AddressPoint
	// Radius is the search buffer outline in the layers' CRS. Optional.
	Radius orb.Polygon
	Layers []models.Layer
}

// MapRenderer produces a self-contained Leaflet HTML document.
type MapRenderer struct {
	zoom int
}

func NewMapRenderer(zoom int) *MapRenderer {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return &MapRenderer{zoom: zoom}
}

type mapLayer struct {
	Name    string
	GeoJSON template.JS
}

type mapData struct {
	Title     string
	Address   string
	Latitude  float64
	Longitude float64
	Zoom      int
	Color     string
	Weight    int
	Layers    []mapLayer
	Radius    template.JS
	Control   bool
}

// Render writes the map document to w. Features are reprojected to WGS84;
// an empty layer still yields a valid map centred on the address.
func (r *MapRenderer) Render(w io.Writer, v MapView) error {
	data := mapData{
		Title:     "Streets near " + v.Address.Query,
		Address:   v.Address.DisplayName,
		Latitude:  v.Address.Latitude,
		Longitude: v.Address.Longitude,
		Zoom:      r.zoom,
		Color:     featureColor,
		Weight:    featureWeight,
		Control:   len(v.Layers) > 1,
	}
	if data.Address == "" {
		data.Address = v.Address.Query
	}

	for _, l := range v.Layers {
		fc, err := toWGS84(l)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(fc)
		if err != nil {
			return &RenderError{Format: "html", Reason: "encode features", Err: err}
		}
		data.Layers = append(data.Layers, mapLayer{Name: string(l.Kind), GeoJSON: template.JS(raw)})
	}

	if len(v.Radius) > 0 && len(v.Layers) > 0 {
		tr, err := projection.NewTransformer(v.Layers[0].EPSG, projection.WGS84)
		if err != nil {
			return fmt.Errorf("render: radius outline: %w", err)
		}
		raw, err := json.Marshal(geojson.NewGeometry(tr.Geometry(v.Radius)))
		if err != nil {
			return &RenderError{Format: "html", Reason: "encode radius", Err: err}
		}
		data.Radius = template.JS(raw)
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, data); err != nil {
		return &RenderError{Format: "html", Reason: "execute template", Err: err}
	}
	_, err := buf.WriteTo(w)
	return err
}

func toWGS84(l models.Layer) (*geojson.FeatureCollection, error) {
	out := geojson.NewFeatureCollection()
	if l.Len() == 0 {
		return out, nil
	}
	tr, err := projection.NewTransformer(l.EPSG, projection.WGS84)
	if err != nil {
		return nil, fmt.Errorf("render: %s layer: %w", l.Kind, err)
	}
	for _, f := range l.Features.Features {
		g := geojson.NewFeature(tr.Geometry(f.Geometry))
		g.ID = f.ID
		for k, v := range f.Properties {
			g.Properties[k] = v
		}
		out.Append(g)
	}
	return out, nil
}
