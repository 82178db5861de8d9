package crs

import "math"

const (
	mercatorA   = 6378137.0
	mercatorMax = 20037508.342789244
	rad         = math.Pi / 180

	// Krasovsky 1940 ellipsoid used by GCJ-02.
	krasovskyA  = 6378245.0
	krasovskyEE = 0.00669342162296594323
)

// MercatorToWGS converts web mercator meters to longitude/latitude.
func MercatorToWGS(x, y float64) (lon, lat float64) {
	lon = x / rad / mercatorA
	lat = (math.Pi*0.5 - 2.0*math.Atan(math.Exp(-y/mercatorA))) / rad
	return lon, lat
}

// WGSToMercator converts longitude/latitude to web mercator meters, wrapping
// longitudes past the antimeridian and clamping to the square world extent.
func WGSToMercator(lon, lat float64) (x, y float64) {
	if math.Abs(lon) > 180 {
		lon -= sign(lon) * 360
	}
	x = mercatorA * lon * rad
	y = mercatorA * math.Log(math.Tan(math.Pi*0.25+0.5*lat*rad))
	return clamp(x), clamp(y)
}

// GCJToWGS removes the GCJ-02 offset applied to coordinates inside China.
// Coordinates outside China are returned unchanged.
func GCJToWGS(lon, lat float64) (float64, float64) {
	if outOfChina(lon, lat) {
		return lon, lat
	}
	dlat := transformLat(lon-105.0, lat-35.0)
	dlon := transformLon(lon-105.0, lat-35.0)
	radlat := lat * rad
	magic := math.Sin(radlat)
	magic = 1 - krasovskyEE*magic*magic
	sqrtmagic := math.Sqrt(magic)
	dlat = dlat / ((krasovskyA * (1 - krasovskyEE)) / (magic * sqrtmagic) * rad)
	dlon = dlon / (krasovskyA / sqrtmagic * math.Cos(radlat) * rad)
	return lon - dlon, lat - dlat
}

func clamp(v float64) float64 {
	return math.Max(-mercatorMax, math.Min(mercatorMax, v))
}

func sign(x float64) float64 {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}

func outOfChina(lon, lat float64) bool {
	return !(lon > 73.66 && lon < 135.05 && lat > 3.86 && lat < 53.55)
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
