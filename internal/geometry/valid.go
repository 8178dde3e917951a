package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Valid reports whether g is a non-empty geometry that can be clipped and
// rendered: finite coordinates, lines with extent, rings with area.
func Valid(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return false
	case orb.Point:
		return finitePoint(g)
	case orb.MultiPoint:
		if len(g) == 0 {
			return false
		}
		return allFinite(g)
	case orb.LineString:
		return validLine(g)
	case orb.MultiLineString:
		if len(g) == 0 {
			return false
		}
		for _, ls := range g {
			if !validLine(ls) {
				return false
			}
		}
		return true
	case orb.Ring:
		return validRing(g)
	case orb.Polygon:
		return validPolygon(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return false
		}
		for _, p := range g {
			if !validPolygon(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		if len(g) == 0 {
			return false
		}
		for _, c := range g {
			if !Valid(c) {
				return false
			}
		}
		return true
	}
	return false
}

func allFinite(pts []orb.Point) bool {
	for _, p := range pts {
		if !finitePoint(p) {
			return false
		}
	}
	return true
}

func validLine(ls orb.LineString) bool {
	if len(ls) < 2 || !allFinite(ls) {
		return false
	}
	for i := 1; i < len(ls); i++ {
		if ls[i] != ls[0] {
			return true
		}
	}
	return false
}

func validRing(r orb.Ring) bool {
	if len(r) < 4 || !allFinite(r) {
		return false
	}
	return planar.Area(r) != 0
}

func validPolygon(p orb.Polygon) bool {
	if len(p) == 0 {
		return false
	}
	return validRing(p[0])
}
