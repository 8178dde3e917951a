package render

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"

	"streetclip/internal/models"

	svg "github.com/ajstarks/svgo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// VectorOptions control the fixed canvas drawing.
type VectorOptions struct {
	Size   int
	Margin float64
	// Separation pushes each sidewalk polygon away from the common centroid
	// by this fraction of its offset, so adjacent polygons read as distinct.
	Separation float64
}

func DefaultVectorOptions() VectorOptions {
	return VectorOptions{Size: 1000, Margin: 40, Separation: 0.2}
}

// VectorRenderer draws planar features on a square SVG canvas.
type VectorRenderer struct {
	opts VectorOptions
}

func NewVectorRenderer(opts VectorOptions) *VectorRenderer {
	def := DefaultVectorOptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.Margin < 0 || 2*opts.Margin >= float64(opts.Size) {
		opts.Margin = def.Margin
	}
	if opts.Separation < 0 {
		opts.Separation = 0
	}
	return &VectorRenderer{opts: opts}
}

type drawLayer struct {
	kind  models.DataKind
	geoms []orb.Geometry
}

// Render writes the SVG document to w. Layers must share one planar CRS.
// An empty subset produces an empty canvas; a subset whose extent has zero
// width or height cannot be scaled and yields a RenderError.
func (r *VectorRenderer) Render(w io.Writer, layers []models.Layer) error {
	var (
		draw  []drawLayer
		bound orb.Bound
		found bool
	)
	for _, l := range layers {
		dl := drawLayer{kind: l.Kind}
		if l.Len() > 0 {
			for _, f := range l.Features.Features {
				if f.Geometry != nil {
					dl.geoms = append(dl.geoms, f.Geometry)
				}
			}
		}
		if l.Kind.Pedestrian() {
			dl.geoms = separate(dl.geoms, r.opts.Separation)
		}
		for _, g := range dl.geoms {
			if !found {
				bound = g.Bound()
				found = true
				continue
			}
			bound = bound.Union(g.Bound())
		}
		draw = append(draw, dl)
	}

	size := r.opts.Size
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(size, size)

	if found {
		width, height := bound.Max[0]-bound.Min[0], bound.Max[1]-bound.Min[1]
		if width <= 0 || height <= 0 {
			return &RenderError{Format: "svg", Reason: "features have zero width or height extent"}
		}
		inner := float64(size) - 2*r.opts.Margin
		scale := math.Min(inner/width, inner/height)
		offX := (float64(size) - width*scale) / 2
		offY := (float64(size) - height*scale) / 2
		toCanvas := func(p orb.Point) orb.Point {
			return orb.Point{
				(p[0]-bound.Min[0])*scale + offX,
				(bound.Max[1]-p[1])*scale + offY,
			}
		}

		for _, dl := range draw {
			canvas.Group(`id="`+string(dl.kind)+`"`, strokeStyle(dl.kind))
			for _, g := range dl.geoms {
				for _, d := range paths(g, toCanvas) {
					canvas.Path(d)
				}
			}
			canvas.Gend()
		}
	}

	canvas.End()
	_, err := buf.WriteTo(w)
	return err
}

func strokeStyle(k models.DataKind) string {
	width := 1
	if k.Pedestrian() {
		width = 2
	}
	return "fill:none;stroke:blue;stroke-width:" + strconv.Itoa(width)
}

// separate translates every geometry away from the mean of their centroids.
// The inputs are left untouched.
func separate(geoms []orb.Geometry, factor float64) []orb.Geometry {
	if factor == 0 || len(geoms) < 2 {
		return geoms
	}

	centroids := make([]orb.Point, len(geoms))
	var mean orb.Point
	for i, g := range geoms {
		c, _ := planar.CentroidArea(g)
		centroids[i] = c
		mean[0] += c[0]
		mean[1] += c[1]
	}
	mean[0] /= float64(len(geoms))
	mean[1] /= float64(len(geoms))

	out := make([]orb.Geometry, len(geoms))
	for i, g := range geoms {
		dx := (centroids[i][0] - mean[0]) * factor
		dy := (centroids[i][1] - mean[1]) * factor
		out[i] = project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
			return orb.Point{p[0] + dx, p[1] + dy}
		})
	}
	return out
}

// paths returns SVG path data for g: lines stay open, polygons are drawn
// by their exterior ring only. Points are not drawn.
func paths(g orb.Geometry, fn func(orb.Point) orb.Point) []string {
	switch g := g.(type) {
	case orb.LineString:
		return []string{pathData(g, fn, false)}
	case orb.MultiLineString:
		out := make([]string, 0, len(g))
		for _, ls := range g {
			out = append(out, pathData(ls, fn, false))
		}
		return out
	case orb.Ring:
		return []string{pathData(g, fn, true)}
	case orb.Polygon:
		if len(g) == 0 {
			return nil
		}
		return []string{pathData(g[0], fn, true)}
	case orb.MultiPolygon:
		var out []string
		for _, p := range g {
			out = append(out, paths(p, fn)...)
		}
		return out
	case orb.Collection:
		var out []string
		for _, c := range g {
			out = append(out, paths(c, fn)...)
		}
		return out
	}
	return nil
}

func pathData(pts []orb.Point, fn func(orb.Point) orb.Point, closed bool) string {
	var sb strings.Builder
	for i, p := range pts {
		if closed && i == len(pts)-1 && len(pts) > 1 && p == pts[0] {
			break
		}
		q := fn(p)
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString(" L")
		}
		sb.WriteString(strconv.FormatFloat(q[0], 'f', 2, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatFloat(q[1], 'f', 2, 64))
	}
	if closed {
		sb.WriteString(" Z")
	}
	return sb.String()
}
