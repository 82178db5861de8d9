package cmd

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/rgbify/internal/imagecodec"
	"github.com/kiesman99/rgbify/internal/tiler"
	"github.com/kiesman99/rgbify/pkg/rgb"
	"github.com/kiesman99/rgbify/pkg/tile"
)

func TestParseCreation(t *testing.T) {
	got, err := parseCreation([]string{"compress=deflate", " zlevel = 9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"COMPRESS": "deflate", "ZLEVEL": "9"}, got)

	_, err = parseCreation([]string{"nokey"})
	var cerr *tile.ConfigError
	assert.ErrorAs(t, err, &cerr)

	_, err = parseCreation([]string{"=x"})
	assert.Error(t, err)
}

func TestOutputKind(t *testing.T) {
	assert.Equal(t, kindGeoTIFF, outputKind("out.tif"))
	assert.Equal(t, kindGeoTIFF, outputKind("OUT.TIFF"))
	assert.Equal(t, kindMBTiles, outputKind("/data/dem.mbtiles"))
	assert.Equal(t, kindUnknown, outputKind("dem.png"))
}

func TestParseTriplet(t *testing.T) {
	got, err := parseTriplet("1, 134,160")
	require.NoError(t, err)
	assert.Equal(t, rgb.Triplet{R: 1, G: 134, B: 160}, got)

	for _, bad := range []string{"1,2", "1,2,256", "a,b,c", ""} {
		_, err := parseTriplet(bad)
		assert.Error(t, err, bad)
	}
}

func TestMetadata(t *testing.T) {
	opts := tiler.Options{
		Config:  tiler.Config{Params: rgb.Params{Base: -10000, Interval: 0.1}, Format: imagecodec.WebP},
		MinZoom: 8,
		MaxZoom: 13,
	}
	m := metadata("dem", opts, -122.5, 37.5, -122, 38)
	assert.Equal(t, "dem", m["name"])
	assert.Equal(t, "webp", m["format"])
	assert.Equal(t, "-122.5,37.5,-122,38", m["bounds"])
	assert.Equal(t, "8", m["minzoom"])
	assert.Equal(t, "13", m["maxzoom"])
	assert.Equal(t, "baselayer", m["type"])
	assert.Contains(t, m["description"], "-10000")
}

func TestEncodingParams_RejectsNegativeRoundDigits(t *testing.T) {
	t.Cleanup(func() { viper.Set("round-digits", 0) })

	viper.Set("round-digits", -1)
	_, err := encodingParams()
	var cerr *tile.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "round-digits")

	viper.Set("round-digits", 3)
	p, err := encodingParams()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), p.RoundDigits)
}

func TestDecodeCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"decode", "--base-val=-10000", "--interval=0.1", "1,134,160"})
	require.NoError(t, rootCmd.Execute())

	v, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-9)
}
