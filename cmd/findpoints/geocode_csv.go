// This file is part of areapoints (https://github.com/spezifisch/areapoints).
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
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spezifisch/areapoints/pkg/geodex"
)

var geocodeCSVCmd = &cobra.Command{
	Use:   "geocode-csv",
	Short: "Add Latitude/Longitude columns to a CSV of addresses",
	Long: `Geocode the address column of a CSV table through the geocode cache and
Nominatim, writing the table with Latitude and Longitude columns appended.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		column, _ := cmd.Flags().GetString("column")
		tStart := time.Now()

		cache := geodex.LoadGeocodeCache(cfg.Cache.Path)
		resolver := newResolver(cfg, nil, cache)
		stats, err := geodex.GeocodeTableFile(cmd.Context(), resolver, input, output, column)
		persistCache(cache, cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("geocode table: %w", err)
		}

		log.WithFields(log.Fields{
			"rows":     stats.Rows,
			"resolved": stats.Resolved,
			"empty":    stats.Empty,
		}).Infof("geocoded file saved as %s", output)
		timeTrack(tStart, "table geocoding")
		return nil
	},
}

func init() {
	geocodeCSVCmd.Flags().StringP("input", "i", "all_towns_combined.csv", "CSV table to geocode")
	geocodeCSVCmd.Flags().StringP("output", "o", "all_towns_combined_geocoded.csv", "geocoded CSV output")
	geocodeCSVCmd.Flags().String("column", "Address", "name of the address column")
}
