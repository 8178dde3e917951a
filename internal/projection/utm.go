package projection

import "math"

const (
	utmScale      = 0.9996
	utmFalseEast  = 500000.0
	utmFalseNorth = 10000000.0
)

// UTM is a transverse Mercator projection on the WGS84 ellipsoid using the
// third order Krüger series.
type UTM struct {
	Zone  int
	North bool

	lon0  float64
	a     float64 // rectifying radius
	e     float64
	alpha [3]float64
	beta  [3]float64
	delta [3]float64
}

// NewUTM builds the projection for a zone (1-60) and hemisphere.
func NewUTM(zone int, north bool) *UTM {
	n := flattening / (2 - flattening)
	n2, n3 := n*n, n*n*n

	return &UTM{
		Zone:  zone,
		North: north,
		lon0:  toRad(float64(zone-1)*6 - 180 + 3),
		a:     semiMajor / (1 + n) * (1 + n2/4 + n2*n2/64),
		e:     eccentricity(),
		alpha: [3]float64{
			n/2 - 2*n2/3 + 5*n3/16,
			13*n2/48 - 3*n3/5,
			61 * n3 / 240,
		},
		beta: [3]float64{
			n/2 - 2*n2/3 + 37*n3/96,
			n2/48 + n3/15,
			17 * n3 / 480,
		},
		delta: [3]float64{
			2*n - 2*n2/3 - 2*n3,
			7*n2/3 - 8*n3/5,
			56 * n3 / 15,
		},
	}
}

func (u *UTM) EPSG() int {
	if u.North {
		return utmNorthBase + u.Zone
	}
	return utmSouthBase + u.Zone
}

func (u *UTM) Geographic() bool { return false }

func (u *UTM) Forward(lon, lat float64) (float64, float64) {
	phi := toRad(lat)
	dl := toRad(lon) - u.lon0

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - u.e*math.Atanh(u.e*sinPhi))
	xi := math.Atan2(t, math.Cos(dl))
	eta := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))

	x, y := eta, xi
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		x += u.alpha[j] * math.Cos(k*xi) * math.Sinh(k*eta)
		y += u.alpha[j] * math.Sin(k*xi) * math.Cosh(k*eta)
	}

	easting := utmFalseEast + utmScale*u.a*x
	northing := utmScale * u.a * y
	if !u.North {
		northing += utmFalseNorth
	}
	return easting, northing
}

func (u *UTM) Inverse(x, y float64) (float64, float64) {
	if !u.North {
		y -= utmFalseNorth
	}
	xi := y / (utmScale * u.a)
	eta := (x - utmFalseEast) / (utmScale * u.a)

	xiP, etaP := xi, eta
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		xiP -= u.beta[j] * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= u.beta[j] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j := 0; j < 3; j++ {
		phi += u.delta[j] * math.Sin(2*float64(j+1)*chi)
	}
	lambda := u.lon0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	return toDeg(lambda), toDeg(phi)
}
