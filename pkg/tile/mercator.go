package tile

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/kiesman99/rgbify/pkg/crs"
)

// LatLonToTile converts lat/lon to tile coordinates at given zoom level,
// clamped to the valid index range.
// http://wiki.openstreetmap.org/wiki/Slippy_map_tilenames
func LatLonToTile(lat, lon float64, zoom int) (uint32, uint32) {
	latRad := lat * math.Pi / 180
	n := float64(uint64(1) << uint(zoom))

	x := math.Floor(n * ((lon + 180) / 360))
	y := math.Floor(n * (1 - (math.Log(math.Tan(latRad)+1/math.Cos(latRad)) / math.Pi)) / 2)

	return clampIndex(x, n), clampIndex(y, n)
}

// TileToLatLon converts the north-west corner of a tile to lat/lon.
func TileToLatLon(x, y uint32, zoom int) (float64, float64) {
	n := float64(uint64(1) << uint(zoom))
	lon := 360.0*float64(x)/n - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2.0*float64(y)/n)))
	lat := latRad * 180 / math.Pi

	return lat, lon
}

// ProjectLatLon converts lat/lon in WGS84 to XY in Spherical Mercator (EPSG:900913/3857)
func ProjectLatLon(lat, lon float64) (float64, float64) {
	x, y := crs.WGSToMercator(lon, lat)
	return x, y
}

// At returns the tile containing a geodetic point.
func At(lon, lat float64, zoom maptile.Zoom) maptile.Tile {
	x, y := LatLonToTile(lat, lon, int(zoom))
	return maptile.New(x, y, zoom)
}

// MercatorBound returns the web mercator extent of a tile. It is a pure
// function of the tile coordinates.
func MercatorBound(t maptile.Tile) orb.Bound {
	const originShift = 20037508.342789244 // 2 * pi * 6378137 / 2
	n := float64(uint64(1) << uint(t.Z))
	size := 2 * originShift / n

	minX := -originShift + float64(t.X)*size
	maxY := originShift - float64(t.Y)*size

	return orb.Bound{Min: orb.Point{minX, maxY - size}, Max: orb.Point{minX + size, maxY}}
}

func clampIndex(v, n float64) uint32 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > n-1 {
		return uint32(n - 1)
	}
	return uint32(v)
}
