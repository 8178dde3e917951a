package projection

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Transformer maps coordinates from one CRS to another through WGS84.
type Transformer struct {
	from Projection
	to   Projection
}

// NewTransformer builds a Transformer between two EPSG codes.
func NewTransformer(from, to int) (*Transformer, error) {
	src, err := ForEPSG(from)
	if err != nil {
		return nil, fmt.Errorf("source crs: %w", err)
	}
	dst, err := ForEPSG(to)
	if err != nil {
		return nil, fmt.Errorf("target crs: %w", err)
	}
	return &Transformer{from: src, to: dst}, nil
}

// Between builds a Transformer from two already resolved projections.
func Between(from, to Projection) *Transformer {
	return &Transformer{from: from, to: to}
}

// Identity reports whether the transformer is a no-op.
func (t *Transformer) Identity() bool {
	return t.from.EPSG() == t.to.EPSG()
}

// Inverse returns the transformer running the other direction.
func (t *Transformer) Inverse() *Transformer {
	return &Transformer{from: t.to, to: t.from}
}

// Point transforms a single point.
func (t *Transformer) Point(p orb.Point) orb.Point {
	if t.Identity() {
		return p
	}
	lon, lat := t.from.Inverse(p[0], p[1])
	x, y := t.to.Forward(lon, lat)
	return orb.Point{x, y}
}

// Geometry returns a transformed copy of g. The input is never mutated.
func (t *Transformer) Geometry(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	if b, ok := g.(orb.Bound); ok {
		return t.Bound(b)
	}

	g = orb.Clone(g)
	if t.Identity() {
		return g
	}
	return project.Geometry(g, t.Point)
}

// Bound transforms the corners and edge midpoints of b and returns their bound.
func (t *Transformer) Bound(b orb.Bound) orb.Bound {
	if t.Identity() {
		return b
	}
	c := b.Center()
	pts := []orb.Point{
		b.Min, b.Max,
		{b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]},
		{c[0], b.Min[1]}, {c[0], b.Max[1]},
		{b.Min[0], c[1]}, {b.Max[0], c[1]},
	}
	out := t.Point(pts[0]).Bound()
	for _, p := range pts[1:] {
		out = out.Extend(t.Point(p))
	}
	return out
}
