package tile

import (
	"iter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/kiesman99/rgbify/pkg/crs"
)

// edgeEpsilon shrinks the geodetic box so that a bound lying exactly on a
// tile edge does not pull in the neighbouring tile.
const edgeEpsilon = 1e-10

// Range yields every tile between two corner tiles of the same zoom,
// inclusive on both ends.
func Range(minTile, maxTile maptile.Tile) iter.Seq[maptile.Tile] {
	return func(yield func(maptile.Tile) bool) {
		for x := minTile.X; x <= maxTile.X; x++ {
			for y := minTile.Y; y <= maxTile.Y; y++ {
				if !yield(maptile.New(x, y, minTile.Z)) {
					return
				}
			}
		}
	}
}

// IsDescendant reports whether t lies inside ancestor (or is ancestor).
func IsDescendant(t, ancestor maptile.Tile) bool {
	if t.Z < ancestor.Z {
		return false
	}
	shift := uint32(t.Z - ancestor.Z)
	return t.X>>shift == ancestor.X && t.Y>>shift == ancestor.Y
}

// Enumerate returns the tiles covering bbox (expressed in src) for every zoom
// in [minZ, maxZ]. When restrict is set, only its descendants are produced
// and zooms above it are skipped entirely.
//
// The sequence is lazy and single pass. Configuration errors are reported
// before the sequence is returned.
func Enumerate(bbox orb.Bound, src crs.CRS, minZ, maxZ int, restrict *maptile.Tile) (iter.Seq[maptile.Tile], error) {
	if err := ValidateZoomRange(minZ, maxZ); err != nil {
		return nil, err
	}
	if restrict != nil {
		if err := ValidateTile(*restrict); err != nil {
			return nil, err
		}
	}

	geo, err := crs.TransformBound(bbox, src, crs.WGS84)
	if err != nil {
		return nil, err
	}
	west, south := geo.Min[0]+edgeEpsilon, geo.Min[1]+edgeEpsilon
	east, north := geo.Max[0]-edgeEpsilon, geo.Max[1]-edgeEpsilon

	return func(yield func(maptile.Tile) bool) {
		for z := minZ; z <= maxZ; z++ {
			zoom := maptile.Zoom(z)
			nw := At(west, north, zoom)
			se := At(east, south, zoom)

			if restrict != nil {
				if zoom < restrict.Z {
					continue
				}
				var ok bool
				nw, se, ok = clip(nw, se, *restrict)
				if !ok {
					continue
				}
			}

			for t := range Range(nw, se) {
				if !yield(t) {
					return
				}
			}
		}
	}, nil
}

// Count drains a tile sequence and returns its length.
func Count(tiles iter.Seq[maptile.Tile]) int {
	n := 0
	for range tiles {
		n++
	}
	return n
}

// clip intersects the corner range with the descendants of ancestor at the
// corners' zoom.
func clip(nw, se, ancestor maptile.Tile) (maptile.Tile, maptile.Tile, bool) {
	shift := uint32(nw.Z - ancestor.Z)
	lo := maptile.New(ancestor.X<<shift, ancestor.Y<<shift, nw.Z)
	hi := maptile.New(((ancestor.X+1)<<shift)-1, ((ancestor.Y+1)<<shift)-1, nw.Z)

	nw.X, nw.Y = max(nw.X, lo.X), max(nw.Y, lo.Y)
	se.X, se.Y = min(se.X, hi.X), min(se.Y, hi.Y)

	return nw, se, nw.X <= se.X && nw.Y <= se.Y
}
