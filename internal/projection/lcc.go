package projection

import "math"

const usSurveyFoot = 1200.0 / 3937.0

// LambertConic is a two standard parallel Lambert conformal conic projection.
// Datum shifts are ignored: NAD83 and WGS84 agree to about a meter.
type LambertConic struct {
	code      int
	unit      float64 // meters per output unit
	falseEast float64 // meters
	falseNort float64 // meters
	lon0      float64
	a, e      float64
	n, f      float64
	rho0      float64
}

// newLongIsland returns NAD83 / New York Long Island in US survey feet
// (EPSG:2263) or meters (EPSG:32118).
func newLongIsland(unit float64) *LambertConic {
	code := NYLongIslandM
	if unit != 1 {
		code = NYLongIslandFt
	}
	return newLambertConic(code, unit,
		41+2.0/60, 40+40.0/60, 40+10.0/60, -74,
		300000, 0, 1/298.257222101)
}

func newLambertConic(code int, unit, lat1, lat2, lat0, lon0, fe, fn, fl float64) *LambertConic {
	a := semiMajor
	e := math.Sqrt(fl * (2 - fl))

	m := func(phi float64) float64 {
		s := math.Sin(phi)
		return math.Cos(phi) / math.Sqrt(1-e*e*s*s)
	}
	t := func(phi float64) float64 {
		s := math.Sin(phi)
		return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
	}

	p1, p2, p0 := toRad(lat1), toRad(lat2), toRad(lat0)
	m1, m2 := m(p1), m(p2)
	t1, t2, t0 := t(p1), t(p2), t(p0)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f := m1 / (n * math.Pow(t1, n))

	return &LambertConic{
		code:      code,
		unit:      unit,
		falseEast: fe,
		falseNort: fn,
		lon0:      toRad(lon0),
		a:         a,
		e:         e,
		n:         n,
		f:         f,
		rho0:      a * f * math.Pow(t0, n),
	}
}

func (l *LambertConic) EPSG() int        { return l.code }
func (l *LambertConic) Geographic() bool { return false }

func (l *LambertConic) Forward(lon, lat float64) (float64, float64) {
	phi := toRad(lat)
	s := math.Sin(phi)
	t := math.Tan(math.Pi/4-phi/2) / math.Pow((1-l.e*s)/(1+l.e*s), l.e/2)
	rho := l.a * l.f * math.Pow(t, l.n)
	theta := l.n * (toRad(lon) - l.lon0)

	x := l.falseEast + rho*math.Sin(theta)
	y := l.falseNort + l.rho0 - rho*math.Cos(theta)
	return x / l.unit, y / l.unit
}

func (l *LambertConic) Inverse(x, y float64) (float64, float64) {
	dx := x*l.unit - l.falseEast
	dy := l.rho0 - (y*l.unit - l.falseNort)

	rho := math.Copysign(math.Hypot(dx, dy), l.n)
	t := math.Pow(rho/(l.a*l.f), 1/l.n)
	theta := math.Atan2(dx, dy)

	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		s := math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-l.e*s)/(1+l.e*s), l.e/2))
		if math.Abs(next-phi) < 1e-14 {
			phi = next
			break
		}
		phi = next
	}

	return toDeg(theta/l.n + l.lon0), toDeg(phi)
}
