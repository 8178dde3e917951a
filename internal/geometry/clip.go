package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Clipper intersects planar geometries with a Buffer. Lines are cut exactly
// at the circle; polygons are clipped against the inscribed buffer polygon,
// so every returned coordinate lies inside the disk.
type Clipper struct {
	buffer *Buffer
	ring   orb.Ring // counter-clockwise, closed
	bound  orb.Bound
}

// NewClipper prepares a clipper for b using an inscribed polygon with the
// given number of vertices.
func NewClipper(b *Buffer, segments int) *Clipper {
	return &Clipper{
		buffer: b,
		ring:   b.Polygon(segments)[0],
		bound:  b.Bound(),
	}
}

// Buffer returns the clip region.
func (c *Clipper) Buffer() *Buffer { return c.buffer }

// Clip returns the part of g inside the buffer, or nil when nothing remains.
func (c *Clipper) Clip(g orb.Geometry) orb.Geometry {
	if g == nil || !g.Bound().Intersects(c.bound) {
		return nil
	}

	switch g := g.(type) {
	case orb.Point:
		if c.buffer.Contains(g) {
			return g
		}
	case orb.MultiPoint:
		var out orb.MultiPoint
		for _, p := range g {
			if c.buffer.Contains(p) {
				out = append(out, p)
			}
		}
		if len(out) == 1 {
			return out[0]
		}
		if len(out) > 1 {
			return out
		}
	case orb.LineString:
		return lines(c.clipLine(g))
	case orb.MultiLineString:
		var out orb.MultiLineString
		for _, ls := range g {
			out = append(out, c.clipLine(ls)...)
		}
		return lines(out)
	case orb.Ring:
		if p := c.clipPolygon(orb.Polygon{g}); p != nil {
			return p
		}
	case orb.Polygon:
		if p := c.clipPolygon(g); p != nil {
			return p
		}
	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, poly := range g {
			if p := c.clipPolygon(poly); p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 1 {
			return out[0]
		}
		if len(out) > 1 {
			return out
		}
	case orb.Collection:
		var out orb.Collection
		for _, sub := range g {
			if r := c.Clip(sub); r != nil {
				out = append(out, r)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func lines(mls orb.MultiLineString) orb.Geometry {
	switch len(mls) {
	case 0:
		return nil
	case 1:
		return mls[0]
	}
	return mls
}

// clipLine splits ls into the runs that lie inside the disk.
func (c *Clipper) clipLine(ls orb.LineString) orb.MultiLineString {
	var (
		out  orb.MultiLineString
		cur  orb.LineString
		open bool // cur ends at the start of the next segment
	)
	flush := func() {
		if len(cur) >= 2 {
			out = append(out, cur)
		}
		cur = nil
		open = false
	}

	for i := 0; i+1 < len(ls); i++ {
		p, q := ls[i], ls[i+1]
		t0, t1, ok := c.segmentInterval(p, q)
		if !ok {
			flush()
			continue
		}

		start, end := lerp(p, q, t0), lerp(p, q, t1)
		if open && t0 == 0 {
			cur = append(cur, end)
		} else {
			flush()
			cur = orb.LineString{start, end}
		}
		open = t1 == 1
		if !open {
			flush()
		}
	}
	flush()

	return out
}

// segmentInterval returns the parameter range [t0, t1] of p->q inside the disk.
func (c *Clipper) segmentInterval(p, q orb.Point) (float64, float64, bool) {
	ctr, r := c.buffer.Center, c.buffer.Radius
	dx, dy := q[0]-p[0], q[1]-p[1]
	fx, fy := p[0]-ctr[0], p[1]-ctr[1]

	a := dx*dx + dy*dy
	if a == 0 {
		return 0, 0, false
	}
	b := 2 * (fx*dx + fy*dy)
	cc := fx*fx + fy*fy - r*r

	disc := b*b - 4*a*cc
	if disc <= 0 {
		return 0, 0, false
	}
	sq := math.Sqrt(disc)
	t0 := math.Max(0, (-b-sq)/(2*a))
	t1 := math.Min(1, (-b+sq)/(2*a))
	if t0 >= t1 {
		return 0, 0, false
	}
	return t0, t1, true
}

func lerp(p, q orb.Point, t float64) orb.Point {
	switch t {
	case 0:
		return p
	case 1:
		return q
	}
	return orb.Point{p[0] + (q[0]-p[0])*t, p[1] + (q[1]-p[1])*t}
}

// clipPolygon clips every ring of p against the buffer polygon with
// Sutherland-Hodgman. The exterior must survive; holes are kept when they do.
func (c *Clipper) clipPolygon(p orb.Polygon) orb.Polygon {
	if len(p) == 0 {
		return nil
	}
	ext := c.clipRing(p[0])
	if !validRing(ext) {
		return nil
	}
	out := orb.Polygon{ext}
	for _, hole := range p[1:] {
		if h := c.clipRing(hole); validRing(h) {
			out = append(out, h)
		}
	}
	return out
}

func (c *Clipper) clipRing(r orb.Ring) orb.Ring {
	pts := []orb.Point(r)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	for i := 0; i+1 < len(c.ring) && len(pts) > 0; i++ {
		a, b := c.ring[i], c.ring[i+1]
		in := pts
		pts = make([]orb.Point, 0, len(in)+2)

		prev := in[len(in)-1]
		prevIn := leftOf(a, b, prev)
		for _, cur := range in {
			curIn := leftOf(a, b, cur)
			switch {
			case curIn && !prevIn:
				pts = append(pts, intersect(a, b, prev, cur), cur)
			case curIn:
				pts = append(pts, cur)
			case prevIn:
				pts = append(pts, intersect(a, b, prev, cur))
			}
			prev, prevIn = cur, curIn
		}
	}

	if len(pts) < 3 {
		return nil
	}
	return append(orb.Ring(pts), pts[0])
}

func leftOf(a, b, p orb.Point) bool {
	return (b[0]-a[0])*(p[1]-a[1])-(b[1]-a[1])*(p[0]-a[0]) >= 0
}

// intersect returns where segment p->q crosses the infinite line a->b.
func intersect(a, b, p, q orb.Point) orb.Point {
	ex, ey := b[0]-a[0], b[1]-a[1]
	dp := ex*(p[1]-a[1]) - ey*(p[0]-a[0])
	dq := ex*(q[1]-a[1]) - ey*(q[0]-a[0])
	t := dp / (dp - dq)
	return orb.Point{p[0] + (q[0]-p[0])*t, p[1] + (q[1]-p[1])*t}
}
