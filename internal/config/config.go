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

// Package config loads areapoints settings from flags, environment, an
// optional YAML file and built-in defaults, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Boundary   string        `yaml:"boundary" mapstructure:"boundary"`
	Points     string        `yaml:"points" mapstructure:"points"`
	Output     string        `yaml:"output" mapstructure:"output"`
	Clustering string        `yaml:"clustering" mapstructure:"clustering"`
	Cache      CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Feed       FeedConfig    `yaml:"feed" mapstructure:"feed"`
	Geocode    GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Resolve    ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Log        LogConfig     `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the geocode cache file.
type CacheConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	PersistEvery int    `yaml:"persist_every" mapstructure:"persist_every"`
}

// FeedConfig configures remote feed downloads.
type FeedConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GeocodeConfig configures the live geocoding service.
type GeocodeConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Email     string        `yaml:"email" mapstructure:"email"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Interval  time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ResolveConfig configures coordinate resolution.
type ResolveConfig struct {
	AddressKeys []string `yaml:"address_keys" mapstructure:"address_keys"`
	MaxLookups  int      `yaml:"max_lookups" mapstructure:"max_lookups"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"boundary":    "boundary",
	"points":      "points",
	"output":      "output",
	"clustering":  "clustering",
	"cache":       "cache.path",
	"email":       "geocode.email",
	"max-lookups": "resolve.max_lookups",
	"log-level":   "log.level",
}

// Load reads configuration. file may be empty, in which case areapoints.yaml
// in the working directory is used if present. Flags that were set on the
// command line override everything else.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Config file
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("areapoints")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("AREAPOINTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("boundary", "")
	v.SetDefault("points", "")
	v.SetDefault("output", "AddressesWithinBoundary.kml")
	v.SetDefault("clustering", "")
	v.SetDefault("cache.path", "geocode_cache.json")
	v.SetDefault("cache.persist_every", 0)
	v.SetDefault("feed.timeout", 15*time.Second)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.email", "")
	v.SetDefault("geocode.user_agent", "areapoints/1.0")
	v.SetDefault("geocode.interval", 1100*time.Millisecond)
	v.SetDefault("geocode.timeout", 10*time.Second)
	v.SetDefault("resolve.address_keys", []string{"Address Line 1", "City", "Town", "1st PIN"})
	v.SetDefault("resolve.max_lookups", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, eris.Wrapf(err, "config: bind flag %s", name)
			}
		}
	}

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger configures the global logrus logger.
func InitLogger(cfg LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return eris.Errorf("config: unknown log format %q", cfg.Format)
	}
	return nil
}
