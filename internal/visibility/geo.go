package visibility

import "math"

// EarthRadiusM is the mean earth radius used for haversine distances.
const EarthRadiusM = 6371000.0

// Distance returns the great-circle distance in meters between two points given in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Pow(math.Sin(dLon/2), 2)
	return EarthRadiusM * 2 * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// haversineSQL renders the same formula over the latitude/longitude columns against two
// placeholders holding the reference point.
func haversineSQL(latArg, lonArg string) string {
	return "(6371000 * 2 * ASIN(SQRT(" +
		"POWER(SIN(RADIANS(latitude - " + latArg + "::float8) / 2), 2) + " +
		"COS(RADIANS(" + latArg + "::float8)) * COS(RADIANS(latitude)) * " +
		"POWER(SIN(RADIANS(longitude - " + lonArg + "::float8) / 2), 2))))"
}
