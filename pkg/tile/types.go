package tile

import (
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// Size is the edge length in pixels of every generated tile.
const Size = 512

// MaxZoom bounds zoom levels so that tile indices fit the archive's
// integer columns.
const MaxZoom = 30

// ConfigError reports an invalid run configuration detected before any
// work starts: zoom ranges, restricting tiles, output formats.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Configf builds a ConfigError.
func Configf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FlipY converts an XYZ row to the inverted TMS row used by MBTiles.
func FlipY(t maptile.Tile) uint32 {
	return (1 << uint32(t.Z)) - t.Y - 1
}

// ValidateZoomRange checks 0 <= minZ <= maxZ <= MaxZoom.
func ValidateZoomRange(minZ, maxZ int) error {
	if minZ < 0 {
		return Configf("zoom range", "min zoom %d less than 0", minZ)
	}
	if maxZ > MaxZoom {
		return Configf("zoom range", "max zoom %d greater than %d", maxZ, MaxZoom)
	}
	if maxZ < minZ {
		return Configf("zoom range", "max zoom %d must be greater than min zoom %d", maxZ, minZ)
	}
	return nil
}
