// Package crs names coordinate reference systems and transforms points
// between them. WGS84 (EPSG:4326) and spherical web mercator (EPSG:3857) are
// handled natively; every other pair goes through the registered Resolver.
package crs

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// CRS identifies a coordinate reference system: an authority code such as
// "EPSG:32633", or any definition a Resolver understands (WKT, PROJ).
type CRS string

const (
	WGS84       CRS = "EPSG:4326"
	WebMercator CRS = "EPSG:3857"
)

// ErrUnsupported is returned when no transform exists between two systems.
var ErrUnsupported = errors.New("unsupported coordinate reference system")

var aliases = map[string]CRS{
	"EPSG:4326":   WGS84,
	"WGS84":       WGS84,
	"CRS:84":      WGS84,
	"EPSG:3857":   WebMercator,
	"EPSG:900913": WebMercator,
	"EPSG:3785":   WebMercator,
	"EPSG:102100": WebMercator,
	"EPSG:102113": WebMercator,
}

// Parse normalizes a definition. Authority strings such as "epsg:3857" or
// "+init=epsg:32633" are upper cased and web mercator aliases collapse to
// WebMercator. Anything else is kept verbatim.
func Parse(s string) (CRS, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return "", fmt.Errorf("%w: empty definition", ErrUnsupported)
	}
	key := strings.ToUpper(raw)
	key = strings.TrimPrefix(key, "+INIT=")
	key = strings.TrimPrefix(key, "INIT=")
	if c, ok := aliases[key]; ok {
		return c, nil
	}
	if strings.HasPrefix(key, "EPSG:") {
		return CRS(key), nil
	}
	return CRS(raw), nil
}

func (c CRS) String() string { return string(c) }

// Geographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) Geographic() bool { return c == WGS84 }

// short keeps long WKT definitions out of error messages.
func (c CRS) short() string {
	if s := string(c); len(s) > 48 {
		return s[:45] + "..."
	}
	return string(c)
}

// Transformer projects points from one system into another.
type Transformer interface {
	// Transform projects pts in place. Points without an image in the
	// target system are set to NaN.
	Transform(pts []orb.Point) error
	Close() error
}

// Resolver builds transformers for pairs the package cannot handle itself.
type Resolver func(src, dst CRS) (Transformer, error)

var (
	resolverMu sync.RWMutex
	resolver   Resolver
)

// RegisterResolver installs r for non native pairs. A nil r removes it.
func RegisterResolver(r Resolver) {
	resolverMu.Lock()
	defer resolverMu.Unlock()
	resolver = r
}

// NewTransformer returns a transformer from src to dst.
func NewTransformer(src, dst CRS) (Transformer, error) {
	src, err := Parse(string(src))
	if err != nil {
		return nil, err
	}
	dst, err = Parse(string(dst))
	if err != nil {
		return nil, err
	}
	if proj, ok := native(src, dst); ok {
		return projection(proj), nil
	}

	resolverMu.RLock()
	r := resolver
	resolverMu.RUnlock()
	if r == nil {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupported, src.short(), dst.short())
	}
	t, err := r(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%s -> %s: %w", src.short(), dst.short(), err)
	}
	return t, nil
}

func native(src, dst CRS) (orb.Projection, bool) {
	switch {
	case src == dst:
		return func(p orb.Point) orb.Point { return p }, true
	case src == WGS84 && dst == WebMercator:
		return func(p orb.Point) orb.Point {
			x, y := WGSToMercator(p[0], p[1])
			return orb.Point{x, y}
		}, true
	case src == WebMercator && dst == WGS84:
		return project.Mercator.ToWGS84, true
	}
	return nil, false
}

type projection orb.Projection

func (p projection) Transform(pts []orb.Point) error {
	for i := range pts {
		pts[i] = p(pts[i])
	}
	return nil
}

func (projection) Close() error { return nil }

// TransformPoint projects a single point.
func TransformPoint(p orb.Point, src, dst CRS) (orb.Point, error) {
	t, err := NewTransformer(src, dst)
	if err != nil {
		return orb.Point{}, err
	}
	defer t.Close()

	pts := []orb.Point{p}
	if err := t.Transform(pts); err != nil {
		return orb.Point{}, err
	}
	if math.IsNaN(pts[0][0]) || math.IsNaN(pts[0][1]) {
		return orb.Point{}, fmt.Errorf("point %v has no image in %s", p, dst.short())
	}
	return pts[0], nil
}

// densify is the number of points sampled along each edge of a bound.
const densify = 21

// TransformBound returns the bound of b's image in dst. Edges are sampled,
// not just corners, since straight edges bend under most projections.
func TransformBound(b orb.Bound, src, dst CRS) (orb.Bound, error) {
	t, err := NewTransformer(src, dst)
	if err != nil {
		return orb.Bound{}, err
	}
	defer t.Close()

	pts := edgePoints(b, densify)
	if err := t.Transform(pts); err != nil {
		return orb.Bound{}, err
	}

	var out orb.Bound
	found := false
	for _, p := range pts {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			continue
		}
		if !found {
			out, found = p.Bound(), true
			continue
		}
		out = out.Extend(p)
	}
	if !found {
		return orb.Bound{}, fmt.Errorf("bound %v has no image in %s", b, dst.short())
	}
	return out, nil
}

// edgePoints samples n points along each edge of b, corners included.
func edgePoints(b orb.Bound, n int) []orb.Point {
	pts := make([]orb.Point, 0, 4*n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		x := b.Min[0] + f*(b.Max[0]-b.Min[0])
		y := b.Min[1] + f*(b.Max[1]-b.Min[1])
		if i == n-1 {
			x, y = b.Max[0], b.Max[1]
		}
		pts = append(pts,
			orb.Point{x, b.Min[1]},
			orb.Point{x, b.Max[1]},
			orb.Point{b.Min[0], y},
			orb.Point{b.Max[0], y},
		)
	}
	return pts
}
