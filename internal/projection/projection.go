package projection

import (
	"fmt"
	"math"
)

// EPSG codes understood by ForEPSG.
const (
	WGS84          = 4326
	NYLongIslandFt = 2263
	NYLongIslandM  = 32118
	utmNorthBase   = 32600
	utmSouthBase   = 32700
)

// WGS84 ellipsoid
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
)

// ProjectionError reports a coordinate reference system that is unset or not supported.
type ProjectionError struct {
	EPSG   int
	Reason string
}

func (e *ProjectionError) Error() string {
	if e.EPSG == 0 {
		return fmt.Sprintf("projection: coordinate reference system is unset: %s", e.Reason)
	}
	return fmt.Sprintf("projection: EPSG:%d: %s", e.EPSG, e.Reason)
}

// Projection converts between WGS84 longitude/latitude (degrees) and a CRS.
type Projection interface {
	// Forward converts WGS84 longitude/latitude to CRS coordinates.
	Forward(lon, lat float64) (x, y float64)

	// Inverse converts CRS coordinates to WGS84 longitude/latitude.
	Inverse(x, y float64) (lon, lat float64)

	EPSG() int

	// Geographic reports whether coordinates are in degrees rather than a planar unit.
	Geographic() bool
}

// ForEPSG returns the Projection for the given EPSG code.
func ForEPSG(code int) (Projection, error) {
	switch {
	case code == 0:
		return nil, &ProjectionError{Reason: "no EPSG code"}
	case code == WGS84:
		return Geodetic{}, nil
	case code == NYLongIslandFt:
		return newLongIsland(usSurveyFoot), nil
	case code == NYLongIslandM:
		return newLongIsland(1), nil
	case code > utmNorthBase && code <= utmNorthBase+60:
		return NewUTM(code-utmNorthBase, true), nil
	case code > utmSouthBase && code <= utmSouthBase+60:
		return NewUTM(code-utmSouthBase, false), nil
	default:
		return nil, &ProjectionError{EPSG: code, Reason: "unsupported coordinate reference system"}
	}
}

// UTMFor returns the UTM zone projection containing the given point.
func UTMFor(lon, lat float64) *UTM {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return NewUTM(zone, lat >= 0)
}

// Geodetic is the identity projection for EPSG:4326.
type Geodetic struct{}

func (Geodetic) Forward(lon, lat float64) (float64, float64) { return lon, lat }
func (Geodetic) Inverse(x, y float64) (float64, float64)     { return x, y }
func (Geodetic) EPSG() int                                   { return WGS84 }
func (Geodetic) Geographic() bool                            { return true }

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

func eccentricity() float64 {
	return math.Sqrt(flattening * (2 - flattening))
}
