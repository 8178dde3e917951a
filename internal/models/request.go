package models

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// DataKind selects the street layer to extract.
type DataKind string

const (
	// KindCenterline is the street centerline (traffic) line layer.
	KindCenterline DataKind = "centerline"
	// KindSidewalk is the sidewalk (pedestrian) polygon layer.
	KindSidewalk DataKind = "sidewalk"
)

// ParseDataKind accepts the menu number or a name.
func ParseDataKind(s string) (DataKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "centerline", "traffic":
		return KindCenterline, nil
	case "2", "sidewalk", "pedestrian":
		return KindSidewalk, nil
	}
	return "", fmt.Errorf("unknown data kind %q", s)
}

// ParseDataKinds parses a comma separated list, dropping duplicates.
func ParseDataKinds(s string) ([]DataKind, error) {
	var kinds []DataKind
	seen := map[DataKind]bool{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseDataKind(part)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no data kind given")
	}
	return kinds, nil
}

// Pedestrian reports whether the layer carries sidewalk polygons.
func (k DataKind) Pedestrian() bool { return k == KindSidewalk }

// OutputFormat selects which documents are produced.
type OutputFormat string

const (
	FormatHTML    OutputFormat = "html"
	FormatSVG     OutputFormat = "svg"
	FormatBoth    OutputFormat = "both"
	FormatGeoJSON OutputFormat = "geojson"
)

// ParseOutputFormat accepts the menu number or a name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "html", "map":
		return FormatHTML, nil
	case "2", "svg", "vector":
		return FormatSVG, nil
	case "3", "both":
		return FormatBoth, nil
	case "geojson":
		return FormatGeoJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// WantsMap reports whether the interactive map is requested.
func (f OutputFormat) WantsMap() bool { return f == FormatHTML || f == FormatBoth }

// WantsVector reports whether the vector drawing is requested.
func (f OutputFormat) WantsVector() bool { return f == FormatSVG || f == FormatBoth }

// ExtractRequest is the validated input of one extraction run.
type ExtractRequest struct {
	Address     string       `json:"address" binding:"required"`
	RadiusMiles float64      `json:"radius_miles" binding:"required"`
	Kinds       []DataKind   `json:"kinds"`
	Format      OutputFormat `json:"format"`
	ExportPath  string       `json:"-"`
}

// Layer is the clipped subset of one data kind.
type Layer struct {
	Kind     DataKind
	EPSG     int
	Features *geojson.FeatureCollection
}

// Len returns the number of features in the layer.
func (l Layer) Len() int {
	if l.Features == nil {
		return 0
	}
	return len(l.Features.Features)
}
