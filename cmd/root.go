package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/rgbify/internal/convert"
	"github.com/kiesman99/rgbify/internal/imagecodec"
	"github.com/kiesman99/rgbify/internal/logging"
	"github.com/kiesman99/rgbify/internal/mbtiles"
	"github.com/kiesman99/rgbify/internal/publish"
	"github.com/kiesman99/rgbify/internal/raster/gdal"
	"github.com/kiesman99/rgbify/internal/tiler"
	"github.com/kiesman99/rgbify/pkg/crs"
	"github.com/kiesman99/rgbify/pkg/rgb"
	"github.com/kiesman99/rgbify/pkg/tile"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rgbify SRC DST",
	Short: "Encode a single band raster as RGB",
	Long: `rgbify encodes a single band raster (usually elevation) into three 8-bit
channels, so that value = base + (R * 256 * 256 + G * 256 + B) * interval.

The output kind follows the DST extension: .tif/.tiff writes one RGB GeoTIFF of
the same size as SRC, .mbtiles writes 512px web mercator tiles for a zoom range.

Examples:
  # Terrain RGB GeoTIFF
  rgbify -b -10000 -i 0.1 dem.tif dem-rgb.tif

  # Tiles for zooms 8 to 13 on 8 workers
  rgbify -b -10000 -i 0.1 --min-z 8 --max-z 13 -j 8 dem.tif dem.mbtiles

  # Only the descendants of one tile, as lossless webp
  rgbify --bounding-tile '[654, 1582, 12]' --format webp dem.tif sf.mbtiles

  # Decode a pixel
  rgbify decode 1,134,160`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		if len(args) != 2 {
			return fmt.Errorf("want SRC and DST, got %d arguments", len(args))
		}
		return runRGBify(cmd, args[0], args[1])
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rgbify.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text|json)")

	// Encoding options, shared with decode
	rootCmd.PersistentFlags().Float64P("base-val", "b", 0, "base value for the RGB encoding")
	rootCmd.PersistentFlags().Float64P("interval", "i", 1, "value step of one RGB unit")

	rootCmd.Flags().IntP("round-digits", "r", 0, "less significant bits to zero, trading precision for compression")
	rootCmd.Flags().Int("bidx", 1, "band to encode")

	// Tile options
	rootCmd.Flags().Int("min-z", 0, "minimum zoom")
	rootCmd.Flags().Int("max-z", 0, "maximum zoom")
	rootCmd.Flags().String("bounding-tile", "", "only write descendants of this tile, as '[x, y, z]'")
	rootCmd.Flags().String("format", "png", "tile format (png|webp)")
	rootCmd.Flags().Bool("chinaoffset", false, "tile grid is GCJ-02")

	// Run options
	rootCmd.Flags().IntP("workers", "j", 4, "worker count")
	rootCmd.Flags().Int("batch-size", 1, "archive rows per commit")
	rootCmd.Flags().String("on-error", "abort", "tile failure policy (abort|skip)")
	rootCmd.Flags().StringSlice("co", nil, "creation option KEY=VALUE, repeatable (PNG ZLEVEL 1-9 folds onto fast/default/best)")

	// Publishing
	rootCmd.Flags().String("publish", "", "upload the output to s3://bucket/key or minio://endpoint/bucket/key")
	rootCmd.Flags().String("publish-access-key", "", "minio access key")
	rootCmd.Flags().String("publish-secret-key", "", "minio secret key")
	rootCmd.Flags().Bool("publish-secure", true, "use TLS for minio")

	for _, name := range []string{"verbose", "log-format", "base-val", "interval"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	for _, name := range []string{
		"round-digits", "bidx",
		"min-z", "max-z", "bounding-tile", "format", "chinaoffset",
		"workers", "batch-size", "on-error", "co",
		"publish", "publish-access-key", "publish-secret-key", "publish-secure",
	} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rgbify" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rgbify")
	}

	// RGBIFY_MIN_Z and friends
	viper.SetEnvPrefix("rgbify")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(cmd *cobra.Command) *logging.Logger {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	if strings.EqualFold(viper.GetString("log-format"), "json") {
		return logging.NewJSON(cmd.ErrOrStderr(), level)
	}
	return logging.NewText(cmd.ErrOrStderr(), level)
}

func encodingParams() (rgb.Params, error) {
	digits := viper.GetInt("round-digits")
	if digits < 0 {
		return rgb.Params{}, tile.Configf("round-digits", "%d must not be negative", digits)
	}
	return rgb.Params{
		Base:        viper.GetFloat64("base-val"),
		Interval:    viper.GetFloat64("interval"),
		RoundDigits: uint32(digits),
	}, nil
}

func runRGBify(cmd *cobra.Command, src, dst string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := newLogger(cmd)

	creation, err := parseCreation(viper.GetStringSlice("co"))
	if err != nil {
		return err
	}

	switch outputKind(dst) {
	case kindGeoTIFF:
		err = runConvert(ctx, logger, src, dst, creation)
	case kindMBTiles:
		err = runTiles(ctx, logger, src, dst, creation)
	default:
		return fmt.Errorf("%s: output must end in .tif, .tiff or .mbtiles", dst)
	}
	if err != nil {
		return err
	}

	if target := viper.GetString("publish"); target != "" {
		return publishOutput(ctx, logger, target, dst)
	}
	return nil
}

type outputType int

const (
	kindUnknown outputType = iota
	kindGeoTIFF
	kindMBTiles
)

func outputKind(path string) outputType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return kindGeoTIFF
	case ".mbtiles":
		return kindMBTiles
	}
	return kindUnknown
}

func runConvert(ctx context.Context, logger *logging.Logger, src, dst string, creation map[string]string) error {
	params, err := encodingParams()
	if err != nil {
		return err
	}
	in, err := gdal.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := gdal.Create(dst, in, creation)
	if err != nil {
		return err
	}
	err = convert.Convert(ctx, in, out, convert.Options{
		Params:  params,
		Band:    viper.GetInt("bidx"),
		Workers: viper.GetInt("workers"),
		Logger:  logger,
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "wrote", "output", dst)
	return nil
}

func runTiles(ctx context.Context, logger *logging.Logger, src, dst string, creation map[string]string) error {
	if !viper.IsSet("min-z") || !viper.IsSet("max-z") {
		return tile.Configf("zoom range", "--min-z and --max-z are required for .mbtiles output")
	}
	format, err := imagecodec.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}
	policy, err := tiler.ParseErrorPolicy(viper.GetString("on-error"))
	if err != nil {
		return err
	}
	params, err := encodingParams()
	if err != nil {
		return err
	}
	opts := tiler.Options{
		Config: tiler.Config{
			Params:      params,
			Format:      format,
			Creation:    creation,
			Band:        viper.GetInt("bidx"),
			ChinaOffset: viper.GetBool("chinaoffset"),
		},
		MinZoom:   viper.GetInt("min-z"),
		MaxZoom:   viper.GetInt("max-z"),
		Workers:   viper.GetInt("workers"),
		BatchSize: viper.GetInt("batch-size"),
		OnError:   policy,
		Logger:    logger,
	}
	if s := viper.GetString("bounding-tile"); s != "" {
		t, err := tile.ParseTile(s)
		if err != nil {
			return err
		}
		opts.BoundingTile = &t
	}

	t, err := tiler.New(gdal.Opener(src), dst, opts)
	if err != nil {
		return err
	}
	if _, err := t.Run(ctx); err != nil {
		return err
	}
	return finishArchive(ctx, logger, src, dst, opts)
}

// finishArchive fills the metadata table and logs the archive fingerprint.
func finishArchive(ctx context.Context, logger *logging.Logger, src, dst string, opts tiler.Options) error {
	in, err := gdal.Open(src)
	if err != nil {
		return err
	}
	bounds, err := crs.TransformBound(in.Bounds(), in.CRS(), crs.WGS84)
	in.Close()
	if err != nil {
		return err
	}

	a, err := mbtiles.Open(dst)
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	err = a.PutMetadata(ctx, metadata(name, opts, bounds.Min[0], bounds.Min[1], bounds.Max[0], bounds.Max[1]))
	if err != nil {
		return err
	}
	fp, err := a.Fingerprint(ctx)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "archive ready", "output", dst, "fingerprint", strconv.FormatUint(fp, 16))
	return nil
}

func metadata(name string, opts tiler.Options, west, south, east, north float64) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		"name":        name,
		"format":      opts.Format.String(),
		"bounds":      strings.Join([]string{f(west), f(south), f(east), f(north)}, ","),
		"minzoom":     strconv.Itoa(opts.MinZoom),
		"maxzoom":     strconv.Itoa(opts.MaxZoom),
		"type":        "baselayer",
		"description": fmt.Sprintf("RGB encoded, value = %s + (R * 65536 + G * 256 + B) * %s", f(opts.Params.Base), f(opts.Params.Interval)),
	}
}

func publishOutput(ctx context.Context, logger *logging.Logger, target, path string) error {
	p, err := publish.New(ctx, target, publish.Options{
		AccessKey: viper.GetString("publish-access-key"),
		SecretKey: viper.GetString("publish-secret-key"),
		Secure:    viper.GetBool("publish-secure"),
	})
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, path); err != nil {
		return err
	}
	logger.InfoContext(ctx, "published", "output", path, "target", target)
	return nil
}

// parseCreation turns KEY=VALUE pairs into a map with upper case keys.
func parseCreation(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, tile.Configf("creation option", "%q is not KEY=VALUE", p)
		}
		out[strings.ToUpper(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
