package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"streetclip/internal/projection"

	"github.com/paulmach/orb/geojson"
)

var crsNameRe = regexp.MustCompile(`EPSG:{1,2}(\d+)$`)

// GeoJSONReader streams the features array of a FeatureCollection document
// one feature at a time.
type GeoJSONReader struct {
	path string
	file *os.File
	dec  *json.Decoder
	epsg int
	done bool
}

// OpenGeoJSON opens path and positions the decoder at the first feature.
// RFC 7946 documents are EPSG:4326; a legacy "crs" member seen before the
// features overrides that.
func OpenGeoJSON(path string) (*GeoJSONReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DatasetLoadError{Path: path, Reason: "cannot open GeoJSON", Err: err}
	}
	r := &GeoJSONReader{
		path: path,
		file: f,
		dec:  json.NewDecoder(bufio.NewReader(f)),
		epsg: projection.WGS84,
	}
	if err := r.seekFeatures(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *GeoJSONReader) loadErr(reason string, err error) error {
	return &DatasetLoadError{Path: r.path, Reason: reason, Err: err}
}

func (r *GeoJSONReader) seekFeatures() error {
	tok, err := r.dec.Token()
	if err != nil {
		return r.loadErr("invalid GeoJSON", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return r.loadErr("GeoJSON document is not an object", nil)
	}

	for r.dec.More() {
		tok, err := r.dec.Token()
		if err != nil {
			return r.loadErr("invalid GeoJSON", err)
		}
		key, _ := tok.(string)

		switch key {
		case "type":
			var typ string
			if err := r.dec.Decode(&typ); err != nil {
				return r.loadErr("invalid type member", err)
			}
			if typ != "FeatureCollection" {
				return r.loadErr(fmt.Sprintf("expected a FeatureCollection, got %q", typ), nil)
			}
		case "crs":
			var crs struct {
				Properties struct {
					Name string `json:"name"`
				} `json:"properties"`
			}
			if err := r.dec.Decode(&crs); err != nil {
				return r.loadErr("invalid crs member", err)
			}
			r.epsg = 0
			if m := crsNameRe.FindStringSubmatch(crs.Properties.Name); m != nil {
				r.epsg, _ = strconv.Atoi(m[1])
			} else if strings.HasSuffix(crs.Properties.Name, "CRS84") {
				r.epsg = projection.WGS84
			}
		case "features":
			tok, err := r.dec.Token()
			if err != nil {
				return r.loadErr("invalid features member", err)
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return r.loadErr("features member is not an array", nil)
			}
			return nil
		default:
			var skip json.RawMessage
			if err := r.dec.Decode(&skip); err != nil {
				return r.loadErr("invalid GeoJSON", err)
			}
		}
	}
	return r.loadErr("no features member", nil)
}

func (r *GeoJSONReader) EPSG() int { return r.epsg }

func (r *GeoJSONReader) Next() (*geojson.Feature, error) {
	if r.done || !r.dec.More() {
		r.done = true
		return nil, io.EOF
	}

	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return nil, r.loadErr("corrupt feature", err)
	}

	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		// Keep the stream going; the clipper drops features without geometry.
		return &geojson.Feature{Type: "Feature", Properties: geojson.Properties{}}, nil
	}
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	return f, nil
}

func (r *GeoJSONReader) Close() error {
	return r.file.Close()
}
