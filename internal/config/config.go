// Copyright 2025 Exo Tech
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "gov.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Network          string `yaml:"network"`
	DataDir          string `yaml:"dataDir"          split_words:"true"`
	LogLevel         string `yaml:"logLevel"         split_words:"true"`
	MetricsPort      uint   `yaml:"metricsPort"      split_words:"true"`
	ThresholdBps     uint16 `yaml:"thresholdBps"     split_words:"true"`
	VoteDuration     string `yaml:"voteDuration"     split_words:"true"`
	SnapshotWorkers  int    `yaml:"snapshotWorkers"  split_words:"true"`
	MaxSnapshotBytes int64  `yaml:"maxSnapshotBytes" split_words:"true"`
	Compress         bool   `yaml:"compress"`
}

var globalConfig = &Config{
	Network:      "mainnet",
	DataDir:      ".gov",
	LogLevel:     "info",
	MetricsPort:  12798,
	ThresholdBps: 6666,
	VoteDuration: "24h",
	Compress:     true,
}

// LoadConfig reads the YAML config file, then overlays environment
// variables with the GOV_ prefix. An empty configFile falls back to
// ~/.gov/gov.yaml then /etc/gov/gov.yaml if either exists.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".gov", "gov.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/gov/gov.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	err := envconfig.Process("gov", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if globalConfig.ThresholdBps == 0 || globalConfig.ThresholdBps > 10000 {
		return nil, fmt.Errorf(
			"invalid thresholdBps: %d (must be in 1..10000)",
			globalConfig.ThresholdBps,
		)
	}
	if _, err := globalConfig.VoteDurationParsed(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// VoteDurationParsed returns the configured vote duration as a
// time.Duration
func (c *Config) VoteDurationParsed() (time.Duration, error) {
	duration, err := time.ParseDuration(c.VoteDuration)
	if err != nil {
		return 0, fmt.Errorf("invalid voteDuration: %w", err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid voteDuration: %s", c.VoteDuration)
	}
	return duration, nil
}
