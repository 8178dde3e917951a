package dataset

import (
	"errors"
	"io"
	"os"
	"strings"

	"streetclip/internal/projection"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ShapefileReader streams features from an ESRI shapefile. Attributes come
// from the sibling .dbf, the CRS from the sibling .prj.
type ShapefileReader struct {
	path   string
	reader *shp.Reader
	fields []string
	epsg   int
}

// OpenShapefile opens path and checks that it carries line, polygon or point shapes.
func OpenShapefile(path string) (*ShapefileReader, error) {
	r, err := shp.Open(path)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return nil, &DatasetLoadError{Path: path, Reason: "cannot open shapefile", Err: err}
	}

	if !supportedShapeType(r.GeometryType) {
		r.Close()
		return nil, &DatasetLoadError{Path: path, Reason: "no line, polygon or point geometry in layer"}
	}

	s := &ShapefileReader{path: path, reader: r}
	for _, f := range r.Fields() {
		s.fields = append(s.fields, f.String())
	}

	prj := strings.TrimSuffix(path, ".shp")
	if strings.HasSuffix(path, ".SHP") {
		prj = strings.TrimSuffix(path, ".SHP")
	}
	if wkt, err := os.ReadFile(prj + ".prj"); err == nil {
		s.epsg = projection.DetectEPSG(string(wkt))
	}

	return s, nil
}

func supportedShapeType(t shp.ShapeType) bool {
	switch t {
	case shp.POINT, shp.POINTZ, shp.POINTM,
		shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM,
		shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM,
		shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return true
	}
	return false
}

func (s *ShapefileReader) EPSG() int { return s.epsg }

func (s *ShapefileReader) Next() (*geojson.Feature, error) {
	if !s.reader.Next() {
		if err := s.reader.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, &DatasetLoadError{Path: s.path, Reason: "corrupt shape record", Err: err}
		}
		return nil, io.EOF
	}

	n, shape := s.reader.Shape()
	f := geojson.NewFeature(convertShape(shape))
	f.ID = n
	for i, name := range s.fields {
		f.Properties[name] = strings.TrimSpace(s.reader.ReadAttribute(n, i))
	}
	return f, nil
}

func (s *ShapefileReader) Close() error {
	s.reader.Close()
	return nil
}

// convertShape maps a shapefile record onto an orb geometry. It returns nil
// for null or unsupported shapes.
func convertShape(shape shp.Shape) orb.Geometry {
	switch v := shape.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}
	case *shp.PointM:
		return orb.Point{v.X, v.Y}
	case *shp.MultiPoint:
		return multiPoint(v.Points)
	case *shp.MultiPointZ:
		return multiPoint(v.Points)
	case *shp.MultiPointM:
		return multiPoint(v.Points)
	case *shp.PolyLine:
		return polyline(parts(v.Parts, v.Points))
	case *shp.PolyLineZ:
		return polyline(parts(v.Parts, v.Points))
	case *shp.PolyLineM:
		return polyline(parts(v.Parts, v.Points))
	case *shp.Polygon:
		return polygon(parts(v.Parts, v.Points))
	case *shp.PolygonZ:
		return polygon(parts(v.Parts, v.Points))
	case *shp.PolygonM:
		return polygon(parts(v.Parts, v.Points))
	}
	return nil
}

func multiPoint(pts []shp.Point) orb.Geometry {
	out := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

func parts(idx []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(idx))
	for i, start := range idx {
		end := int32(len(pts))
		if i+1 < len(idx) {
			end = idx[i+1]
		}
		if start < 0 || end > int32(len(pts)) || start >= end {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func polyline(ps [][]orb.Point) orb.Geometry {
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return orb.LineString(ps[0])
	}
	out := make(orb.MultiLineString, len(ps))
	for i, p := range ps {
		out[i] = orb.LineString(p)
	}
	return out
}

// polygon groups shapefile rings: clockwise rings are exteriors, the others
// are holes assigned to the exterior that contains them.
func polygon(ps [][]orb.Point) orb.Geometry {
	var (
		polys orb.MultiPolygon
		holes []orb.Ring
	)
	for _, p := range ps {
		r := orb.Ring(p)
		if r.Orientation() == orb.CW {
			polys = append(polys, orb.Polygon{r})
		} else {
			holes = append(holes, r)
		}
	}

	for _, h := range holes {
		placed := false
		for i := range polys {
			if len(h) > 0 && planar.RingContains(polys[i][0], h[0]) {
				polys[i] = append(polys[i], h)
				placed = true
				break
			}
		}
		if !placed {
			// Counter-clockwise exterior written by a non-conforming tool.
			polys = append(polys, orb.Polygon{h})
		}
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}
	return polys
}
