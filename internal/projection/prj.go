package projection

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	authorityRe = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]\s*\]\s*$`)
	utmZoneRe   = regexp.MustCompile(`UTM[_ ]ZONE[_ ](\d{1,2})([NS])`)
	unitRe      = regexp.MustCompile(`UNIT\["([^"]*)",\s*([0-9.eE+-]+)`)
)

// DetectEPSG guesses the EPSG code of an ESRI .prj WKT string. It returns 0
// when the CRS cannot be identified.
func DetectEPSG(wkt string) int {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return 0
	}

	// The trailing AUTHORITY belongs to the outermost CRS.
	if m := authorityRe.FindStringSubmatch(wkt); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			return code
		}
	}

	upper := strings.ToUpper(wkt)
	switch {
	case strings.HasPrefix(upper, "PROJCS"):
		if strings.Contains(upper, "LONG_ISLAND") || strings.Contains(upper, "LONG ISLAND") {
			switch linearUnit(upper) {
			case "ft":
				return NYLongIslandFt
			case "m":
				return NYLongIslandM
			}
			return 0
		}
		if m := utmZoneRe.FindStringSubmatch(upper); m != nil {
			zone, _ := strconv.Atoi(m[1])
			if m[2] == "N" {
				return utmNorthBase + zone
			}
			return utmSouthBase + zone
		}
	case strings.HasPrefix(upper, "GEOGCS"):
		if strings.Contains(upper, "WGS") || strings.Contains(upper, "NAD_1983") || strings.Contains(upper, "NAD83") {
			return WGS84
		}
	}
	return 0
}

// linearUnit classifies the last UNIT of a projected CRS, which is its
// linear unit, as "ft", "m" or "" when unknown. Without any UNIT the CRS
// name decides.
func linearUnit(upper string) string {
	units := unitRe.FindAllStringSubmatch(upper, -1)
	if len(units) == 0 {
		if strings.Contains(upper, "FEET") || strings.Contains(upper, "_FT") {
			return "ft"
		}
		return ""
	}

	last := units[len(units)-1]
	factor, err := strconv.ParseFloat(last[2], 64)
	if err != nil {
		return ""
	}
	switch {
	case math.Abs(factor-1) < 1e-9:
		return "m"
	case math.Abs(factor-0.3048) < 1e-4:
		return "ft"
	}
	return ""
}
