// This file is part of areapoints (https://github.com/spezifisch/areapoints).
// Based on pogo-planner (https://github.com/spezifisch/pogo-planner).
// Copyright (C) 2021-2022 spezifisch <spezifisch-7e6@below.fr> (https://github.com/spezifisch).
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, version 3 of the License.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or FITNESS
// FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License for more
// details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spezifisch/areapoints/internal/config"
	"github.com/spezifisch/areapoints/pkg/geodex"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "findpoints",
	Short: "Find map markers inside a boundary",
	Long: `Read placemarks from a KML feed (following its network links), fill in
missing coordinates from a clustering table, a geocode cache and Nominatim,
and write the placemarks that lie inside a boundary polygon to a new KML file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		_ = godotenv.Load(envFile)

		configFile, _ := cmd.Flags().GetString("config")
		c, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Boundary == "" || cfg.Points == "" {
			return fmt.Errorf("both --boundary and --points are required")
		}
		return runPipeline(cmd.Context(), cfg)
	},
}

func runPipeline(ctx context.Context, cfg *config.Config) error {
	tStart := time.Now()

	boundary, err := geodex.LoadBoundary(cfg.Boundary)
	if err != nil {
		return fmt.Errorf("load boundary: %w", err)
	}
	sw, ne := boundary.Bounds()
	log.WithFields(log.Fields{
		"vertices": len(boundary.Ring()),
		"sw":       sw.String(),
		"ne":       ne.String(),
	}).Info("loaded boundary")

	source := geodex.NewFeedSource(
		geodex.WithFeedHTTPClient(&http.Client{Timeout: cfg.Feed.Timeout}),
		geodex.WithFeedUserAgent(cfg.Geocode.UserAgent),
	)
	markers, err := source.Load(ctx, cfg.Points)
	if err != nil {
		return fmt.Errorf("load placemarks: %w", err)
	}
	log.Infof("total placemarks found: %d", len(markers))
	timeTrack(tStart, "feed loading")

	index, err := geodex.LoadClusterIndex(cfg.Clustering)
	if err != nil {
		log.WithError(err).Warn("ignoring clustering table")
		index = geodex.NewClusterIndex()
	}
	cache := geodex.LoadGeocodeCache(cfg.Cache.Path)

	tResolve := time.Now()
	resolver := newResolver(cfg, index, cache)
	stats, resolveErr := resolver.Resolve(ctx, markers)
	persistCache(cache, cfg.Cache.Path)
	if resolveErr != nil {
		return fmt.Errorf("resolve coordinates: %w", resolveErr)
	}
	log.Infof("resolved %d of %d placemarks missing coordinates", stats.Resolved(), stats.Missing)
	timeTrack(tResolve, "coordinate resolution")

	sel := geodex.Select(boundary, markers)
	log.Infof("placemarks within bounding box: %d", sel.InBox)
	log.Infof("found %d addresses inside the boundary", len(sel.Inside))

	if err = geodex.WriteFeedFile(cfg.Output, sel.Inside); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Infof("wrote %s", cfg.Output)
	timeTrack(tStart, "run")
	return nil
}

func newResolver(cfg *config.Config, index *geodex.ClusterIndex, cache *geodex.GeocodeCache) *geodex.Resolver {
	client := geodex.NewNominatimClient(
		geodex.WithBaseURL(cfg.Geocode.BaseURL),
		geodex.WithHTTPClient(&http.Client{Timeout: cfg.Geocode.Timeout}),
		geodex.WithUserAgent(cfg.Geocode.UserAgent),
		geodex.WithEmail(cfg.Geocode.Email),
	)
	opts := []geodex.ResolverOption{
		geodex.WithGate(geodex.NewIntervalGate(geodex.GateInterval(cfg.Geocode.BaseURL, cfg.Geocode.Interval))),
		geodex.WithAddressKeys(cfg.Resolve.AddressKeys),
		geodex.WithSampleLimit(cfg.Resolve.MaxLookups),
	}
	if cfg.Cache.PersistEvery > 0 {
		opts = append(opts, geodex.WithCheckpoint(cfg.Cache.PersistEvery, func() {
			persistCache(cache, cfg.Cache.Path)
		}))
	}
	return geodex.NewResolver(index, cache, client, opts...)
}

// persistCache saves the cache if it changed. Failing to save only costs
// repeat lookups next time, so it is not fatal.
func persistCache(cache *geodex.GeocodeCache, path string) {
	if !cache.Dirty() || path == "" {
		return
	}
	if err := cache.Persist(path); err != nil {
		log.WithError(err).WithField("file", path).Error("failed to save geocode cache")
	}
}

// from: https://coderwall.com/p/cp5fya/measuring-execution-time-in-go
func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	log.Printf("> %s took %s", name, elapsed)
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./areapoints.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with AREAPOINTS_* settings")
	rootCmd.PersistentFlags().String("cache", "", "geocode cache JSON file")
	rootCmd.PersistentFlags().String("email", "", "contact email sent to Nominatim")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.Flags().StringP("boundary", "b", "", "KML or shapefile with the boundary ring")
	rootCmd.Flags().StringP("points", "p", "", "KML marker feed")
	rootCmd.Flags().StringP("output", "o", "", "KML file for the markers inside the boundary")
	rootCmd.Flags().StringP("clustering", "c", "", "CSV or XLSX table with precomputed coordinates")
	rootCmd.Flags().Int("max-lookups", 0, "only resolve the first N markers without coordinates (0 = all)")

	rootCmd.AddCommand(geocodeCSVCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
