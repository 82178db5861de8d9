package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/rgbify/pkg/rgb"
)

var decodeCmd = &cobra.Command{
	Use:   "decode R,G,B",
	Short: "Decode an RGB triplet back into a value",
	Long: `Decode prints base + (R * 256 * 256 + G * 256 + B) * interval for one pixel,
using the same --base-val and --interval as the encoding run.

Examples:
  rgbify decode -b -10000 -i 0.1 1,134,160`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTriplet(args[0])
		if err != nil {
			return err
		}
		v := rgb.Decode(t, viper.GetFloat64("base-val"), viper.GetFloat64("interval"))
		fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func parseTriplet(s string) (rgb.Triplet, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return rgb.Triplet{}, fmt.Errorf("triplet must be in format 'r,g,b'")
	}
	var c [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return rgb.Triplet{}, fmt.Errorf("invalid channel %d in triplet: %v", i, err)
		}
		c[i] = uint8(v)
	}
	return rgb.Triplet{R: c[0], G: c[1], B: c[2]}, nil
}
