package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// MetersPerMile converts user-facing miles to planar meters.
const MetersPerMile = 1609.34

// DefaultSegments is the vertex count of the inscribed buffer polygon.
const DefaultSegments = 128

// InvalidRadiusError is returned for a radius that is not positive and finite.
type InvalidRadiusError struct {
	Radius float64
}

func (e *InvalidRadiusError) Error() string {
	return fmt.Sprintf("invalid radius %v: must be a positive, finite number", e.Radius)
}

// ValidateRadius checks that r is usable as a buffer radius.
func ValidateRadius(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return &InvalidRadiusError{Radius: r}
	}
	return nil
}

// MilesToMeters validates a radius in miles and converts it to meters.
func MilesToMeters(miles float64) (float64, error) {
	if err := ValidateRadius(miles); err != nil {
		return 0, err
	}
	return miles * MetersPerMile, nil
}

// Buffer is a disk of fixed radius around a planar point.
type Buffer struct {
	Center orb.Point
	Radius float64
}

// NewBuffer builds the disk around center. Both are in planar units.
func NewBuffer(center orb.Point, radius float64) (*Buffer, error) {
	if err := ValidateRadius(radius); err != nil {
		return nil, err
	}
	if !finitePoint(center) {
		return nil, fmt.Errorf("geometry: buffer center %v is not finite", center)
	}
	return &Buffer{Center: center, Radius: radius}, nil
}

// Area of the disk.
func (b *Buffer) Area() float64 {
	return math.Pi * b.Radius * b.Radius
}

// Bound is the axis aligned square enclosing the disk.
func (b *Buffer) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Center[0] - b.Radius, b.Center[1] - b.Radius},
		Max: orb.Point{b.Center[0] + b.Radius, b.Center[1] + b.Radius},
	}
}

// Contains reports whether p lies inside the disk, allowing a relative
// tolerance for points computed on the boundary.
func (b *Buffer) Contains(p orb.Point) bool {
	return b.Distance(p) <= b.Radius*(1+1e-9)
}

// Distance from the buffer center.
func (b *Buffer) Distance(p orb.Point) float64 {
	return math.Hypot(p[0]-b.Center[0], p[1]-b.Center[1])
}

// Polygon returns the counter-clockwise polygon with the given number of
// vertices inscribed in the disk.
func (b *Buffer) Polygon(segments int) orb.Polygon {
	if segments < 8 {
		segments = DefaultSegments
	}
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, orb.Point{
			b.Center[0] + b.Radius*math.Cos(theta),
			b.Center[1] + b.Radius*math.Sin(theta),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

func finitePoint(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
