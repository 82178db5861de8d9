package tile

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// ParseTile parses a restricting tile written as a JSON array "[x, y, z]".
func ParseTile(s string) (maptile.Tile, error) {
	var raw []json.Number
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return maptile.Tile{}, Configf("bounding tile", "%q is not valid: %v", s, err)
	}
	if len(raw) != 3 {
		return maptile.Tile{}, Configf("bounding tile", "%q must have exactly 3 elements [x, y, z], got %d", s, len(raw))
	}

	var xyz [3]uint32
	for i, n := range raw {
		v, err := n.Float64()
		if err != nil || v != math.Trunc(v) || v < 0 || v > math.MaxUint32 {
			return maptile.Tile{}, Configf("bounding tile", "%q element %d is not a non-negative integer", s, i)
		}
		xyz[i] = uint32(v)
	}

	t := maptile.New(xyz[0], xyz[1], maptile.Zoom(xyz[2]))
	if err := ValidateTile(t); err != nil {
		return maptile.Tile{}, err
	}
	return t, nil
}

// ValidateTile checks that a tile's coordinates lie in [0, 2^z).
func ValidateTile(t maptile.Tile) error {
	if t.Z > MaxZoom {
		return Configf("bounding tile", "zoom %d greater than %d", t.Z, MaxZoom)
	}
	n := uint64(1) << uint64(t.Z)
	if uint64(t.X) >= n || uint64(t.Y) >= n {
		return Configf("bounding tile", "[%d, %d, %d] outside [0, %d) at zoom %d", t.X, t.Y, t.Z, n, t.Z)
	}
	return nil
}
