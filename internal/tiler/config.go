package tiler

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb/maptile"

	"github.com/kiesman99/rgbify/internal/imagecodec"
	"github.com/kiesman99/rgbify/internal/logging"
	"github.com/kiesman99/rgbify/pkg/rgb"
	"github.com/kiesman99/rgbify/pkg/tile"
)

// ConfigError is raised before any work begins.
type ConfigError = tile.ConfigError

// ErrorPolicy decides what a failed tile does to the run.
type ErrorPolicy int

const (
	// Abort stops the run at the first failed tile. Rows committed before
	// the failure stay in the archive, which must be treated as invalid.
	Abort ErrorPolicy = iota
	// Skip logs a warning for a failed tile and keeps going.
	Skip
)

func (p ErrorPolicy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// ParseErrorPolicy accepts "abort" or "skip".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return Abort, nil
	case "skip":
		return Skip, nil
	}
	return Abort, tile.Configf("on-error", "%q must be abort or skip", s)
}

// Config is built once per run and shared read-only by every worker.
type Config struct {
	Params      rgb.Params
	Format      imagecodec.Format
	Creation    map[string]string
	Band        int  // 1-based band to encode
	ChinaOffset bool // tile grid is GCJ-02, shift tile bounds to WGS84
}

// Options configures an RGBTiler.
type Options struct {
	Config

	MinZoom      int
	MaxZoom      int
	BoundingTile *maptile.Tile
	Workers      int
	BatchSize    int
	OnError      ErrorPolicy
	Logger       *logging.Logger
}

func (o *Options) validate() error {
	if err := tile.ValidateZoomRange(o.MinZoom, o.MaxZoom); err != nil {
		return err
	}
	if o.BoundingTile != nil {
		if err := tile.ValidateTile(*o.BoundingTile); err != nil {
			return err
		}
	}
	if err := o.Params.Validate(); err != nil {
		return tile.Configf("encoding", "%v", err)
	}
	if _, err := imagecodec.New(o.Format, o.Creation); err != nil {
		return err
	}
	if o.Workers < 1 {
		return tile.Configf("workers", "%d must be at least 1", o.Workers)
	}
	if o.Band < 1 {
		return tile.Configf("bidx", "band %d must be at least 1", o.Band)
	}
	if o.OnError != Abort && o.OnError != Skip {
		return tile.Configf("on-error", "unknown policy %d", int(o.OnError))
	}
	return nil
}

// TileError wraps a failure of a single tile.
type TileError struct {
	Tile maptile.Tile
	Err  error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d/%d/%d: %v", e.Tile.Z, e.Tile.X, e.Tile.Y, e.Err)
}

func (e *TileError) Unwrap() error { return e.Err }
