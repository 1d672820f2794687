package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/store"
	"github.com/verdantlab/flora-cli/internal/zonemap"
	"github.com/verdantlab/flora-cli/pkg/phzmapi"
)

var (
	zoneZIP string
	zoneLat float64
	zoneLon float64
)

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Look up a USDA hardiness zone",
	Long:  "Resolves a hardiness zone by ZIP code (via phzmapi.org, cached locally) or by coordinates against the loaded zone shapefile.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		switch {
		case zoneZIP != "":
			return zoneByZIP(ctx, zoneZIP)
		case cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon"):
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
				return eris.New("--lat and --lon go together")
			}
			return zoneByPoint(zoneLat, zoneLon)
		default:
			return eris.New("provide --zip, or --lat and --lon")
		}
	},
}

func init() {
	zoneCmd.Flags().StringVar(&zoneZIP, "zip", "", "5-digit ZIP code")
	zoneCmd.Flags().Float64Var(&zoneLat, "lat", 0, "latitude")
	zoneCmd.Flags().Float64Var(&zoneLon, "lon", 0, "longitude")
	rootCmd.AddCommand(zoneCmd)
}

func zoneByZIP(ctx context.Context, zip string) error {
	var cache *store.Local
	if local, err := initLocal(ctx); err != nil {
		zap.L().Warn("zone cache unavailable", zap.Error(err))
	} else {
		cache = local
		defer local.Close() //nolint:errcheck
	}

	api := phzmapi.NewClient(phzmapi.WithBaseURL(cfg.Zone.PHZMapiBaseURL))
	info, err := zonemap.NewResolver(nil, api, cache).ByZIP(ctx, zip)
	if err != nil {
		return eris.Wrapf(err, "zone lookup for %s", zip)
	}

	if info.TemperatureRange != "" {
		fmt.Printf("ZIP %s: zone %s (%s)\n", zip, info.Zone, info.TemperatureRange)
	} else {
		fmt.Printf("ZIP %s: zone %s\n", zip, info.Zone)
	}
	return nil
}

func zoneByPoint(lat, lon float64) error {
	if cfg.Zone.Shapefile == "" {
		return eris.New("a zone shapefile is required for point lookups (FLORA_ZONE_SHAPEFILE)")
	}

	zones, err := zonemap.LoadShapefile(cfg.Zone.Shapefile)
	if err != nil {
		return err
	}
	zap.L().Debug("shapefile loaded", zap.Int("zones", zones.Len()))

	zone, ok := zonemap.NewResolver(zones, nil, nil).ByPoint(lat, lon)
	if !ok {
		return eris.Errorf("no hardiness zone at %.4f, %.4f", lat, lon)
	}

	fmt.Printf("%.4f, %.4f: zone %s\n", lat, lon, zone)
	return nil
}
