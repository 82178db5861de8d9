// Package gdal adapts GDAL datasets to the raster interfaces.
package gdal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"github.com/kiesman99/rgbify/internal/raster"
	"github.com/kiesman99/rgbify/pkg/crs"
)

// ErrNoBands is returned when opening a dataset without raster bands.
var ErrNoBands = errors.New("dataset has no bands")

var registerOnce sync.Once

func register() { registerOnce.Do(godal.RegisterAll) }

var dtypes = map[godal.DataType]raster.DataType{
	godal.Byte:    raster.Byte,
	godal.UInt16:  raster.UInt16,
	godal.Int16:   raster.Int16,
	godal.UInt32:  raster.UInt32,
	godal.Int32:   raster.Int32,
	godal.Float32: raster.Float32,
	godal.Float64: raster.Float64,
}

// Source is a read-only dataset. A Source must not be shared between
// goroutines; open one per worker instead.
type Source struct {
	ds        *godal.Dataset
	path      string
	width     int
	height    int
	bands     int
	dtype     raster.DataType
	transform raster.Affine
	crs       crs.CRS
	nodata    float64
	hasNoData bool
}

// Open opens a raster file.
func Open(path string) (*Source, error) {
	register()
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	st := ds.Structure()
	s := &Source{ds: ds, path: path, width: st.SizeX, height: st.SizeY, bands: st.NBands}
	if s.bands < 1 {
		ds.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNoBands)
	}

	var ok bool
	if s.dtype, ok = dtypes[st.DataType]; !ok {
		ds.Close()
		return nil, fmt.Errorf("%s: unsupported data type %s", path, st.DataType)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("%s: geotransform: %w", path, err)
	}
	s.transform = raster.FromGDAL(gt)
	s.crs = spatialRef(ds.SpatialRef())
	s.nodata, s.hasNoData = ds.Bands()[0].NoData()
	return s, nil
}

// Opener returns a raster.Opener that opens path on every call.
func Opener(path string) raster.Opener {
	return func() (raster.Source, error) {
		s, err := Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// spatialRef names a reference system by its authority code, falling back
// to its WKT for systems without one.
func spatialRef(sr *godal.SpatialRef) crs.CRS {
	if sr == nil {
		return ""
	}
	name, code := sr.AuthorityName(""), sr.AuthorityCode("")
	if name == "" || code == "" {
		wkt, err := sr.WKT()
		if err != nil {
			return ""
		}
		return crs.CRS(wkt)
	}
	raw := name + ":" + code
	if c, err := crs.Parse(raw); err == nil {
		return c
	}
	return crs.CRS(raw)
}

func (s *Source) Bounds() orb.Bound        { return s.transform.Bounds(s.width, s.height) }
func (s *Source) CRS() crs.CRS             { return s.crs }
func (s *Source) DType() raster.DataType   { return s.dtype }
func (s *Source) Size() (int, int)         { return s.width, s.height }
func (s *Source) Transform() raster.Affine { return s.transform }
func (s *Source) NoData() (float64, bool)  { return s.nodata, s.hasNoData }

func (s *Source) ReadWindow(band int, w raster.Window) (raster.Array, error) {
	if s.ds == nil {
		return raster.Array{}, raster.ErrClosed
	}
	if band < 1 || band > s.bands {
		return raster.Array{}, fmt.Errorf("band %d out of range [1, %d]", band, s.bands)
	}
	if w.Empty() || w.Intersect(s.width, s.height) != w {
		return raster.Array{}, fmt.Errorf("window %+v outside %dx%d raster", w, s.width, s.height)
	}
	a, err := raster.NewArray(s.dtype, 1, w.Height, w.Width)
	if err != nil {
		return raster.Array{}, err
	}
	if err := s.ds.Bands()[band-1].Read(w.Col, w.Row, a.Data, w.Width, w.Height); err != nil {
		return raster.Array{}, fmt.Errorf("read %s band %d: %w", s.path, band, err)
	}
	return a, nil
}

func (s *Source) Close() error {
	if s.ds == nil {
		return nil
	}
	err := s.ds.Close()
	s.ds = nil
	return err
}

// Writer is a three band Byte GeoTIFF. WriteWindow may be called from
// several goroutines.
type Writer struct {
	mu     sync.Mutex
	ds     *godal.Dataset
	path   string
	width  int
	height int
}

// Create creates a GeoTIFF at path with the size and georeferencing of like.
// Creation options are passed to the GTiff driver as KEY=VALUE pairs.
func Create(path string, like raster.Source, creation map[string]string) (*Writer, error) {
	register()
	width, height := like.Size()
	ds, err := godal.Create(godal.GTiff, path, 3, godal.Byte, width, height,
		godal.CreationOption(creationOptions(creation)...))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if err := ds.SetGeoTransform(like.Transform().GDAL()); err != nil {
		ds.Close()
		return nil, fmt.Errorf("%s: set geotransform: %w", path, err)
	}
	if c := like.CRS(); c != "" {
		sr, err := godal.NewSpatialRef(string(c))
		if err != nil {
			ds.Close()
			return nil, fmt.Errorf("%s: spatial ref: %w", path, err)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			ds.Close()
			return nil, fmt.Errorf("%s: set spatial ref: %w", path, err)
		}
	}
	return &Writer{ds: ds, path: path, width: width, height: height}, nil
}

func (w *Writer) WriteWindow(win raster.Window, a raster.Array) error {
	planes, ok := a.Uint8s()
	if !ok || a.Bands != 3 {
		return fmt.Errorf("writer needs a 3 band uint8 array, got %d bands of %v", a.Bands, a.DType)
	}
	if a.Rows != win.Height || a.Cols != win.Width || win.Intersect(w.width, w.height) != win {
		return fmt.Errorf("array %dx%d does not fit window %+v", a.Rows, a.Cols, win)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ds == nil {
		return raster.ErrClosed
	}
	n := win.Width * win.Height
	for b, band := range w.ds.Bands() {
		if err := band.Write(win.Col, win.Row, planes[b*n:(b+1)*n], win.Width, win.Height); err != nil {
			return fmt.Errorf("write %s band %d: %w", w.path, b+1, err)
		}
	}
	return nil
}

// Close flushes the dataset to disk.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ds == nil {
		return nil
	}
	err := w.ds.Close()
	w.ds = nil
	return err
}

func creationOptions(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, strings.ToUpper(k)+"="+v)
	}
	sort.Strings(out)
	return out
}

var (
	_ raster.Source = (*Source)(nil)
	_ raster.Writer = (*Writer)(nil)
)
