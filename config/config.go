// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package config holds the configuration of a malus node and its loading
// from a TOML file, the environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/malus/variants"
	"github.com/ChainSafe/malus/dot/parachain/node"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/ChainSafe/malus/internal/metrics"
	"github.com/ChainSafe/malus/lib/metered"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables overriding the configuration.
const EnvPrefix = "MALUS"

var errUnknownVariant = errors.New("unknown variant")

// Config is the configuration of a malus node.
type Config struct {
	BaseConfig `mapstructure:",squash"`
	Overseer   *OverseerConfig `mapstructure:"overseer" validate:"required"`
	Node       *NodeConfig     `mapstructure:"node" validate:"required"`
	Variant    *VariantConfig  `mapstructure:"variant" validate:"required"`
}

// BaseConfig is the base configuration of the node.
type BaseConfig struct {
	LogLevel       string `mapstructure:"log"`
	PublishMetrics bool   `mapstructure:"publish-metrics"`
	MetricsAddress string `mapstructure:"metrics-address" validate:"hostname_port"`
}

// OverseerConfig configures the channels and tasks of the overseer.
type OverseerConfig struct {
	ChannelCapacity   int           `mapstructure:"channel-capacity" validate:"gt=0"`
	SignalCapacity    int           `mapstructure:"signal-capacity" validate:"gt=0"`
	QueueSizeWarning  int           `mapstructure:"queue-size-warning" validate:"gte=0"`
	BlockingTaskSlots int           `mapstructure:"blocking-task-slots" validate:"gt=0"`
	StopTimeout       time.Duration `mapstructure:"stop-timeout" validate:"gt=0"`
}

// NodeConfig configures the candidates driven through the node.
type NodeConfig struct {
	ParaID               uint32        `mapstructure:"para-id"`
	Candidates           int           `mapstructure:"candidates" validate:"gt=0"`
	Interval             time.Duration `mapstructure:"interval" validate:"gte=0"`
	Timeout              time.Duration `mapstructure:"timeout" validate:"gt=0"`
	DatabasePath         string        `mapstructure:"database-path"`
	MaxPoVSize           uint32        `mapstructure:"max-pov-size" validate:"gt=0"`
	ValidationTimeout    time.Duration `mapstructure:"validation-timeout" validate:"gt=0"`
	ParticipationTimeout time.Duration `mapstructure:"participation-timeout" validate:"gt=0"`
}

// VariantConfig configures the variant the node runs.
type VariantConfig struct {
	Name                string `mapstructure:"name"`
	Percentage          uint8  `mapstructure:"percentage" validate:"lte=100"`
	FakeValidationError string `mapstructure:"fake-validation-error"`
	Seed                int64  `mapstructure:"seed"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	overseerCfg := overseer.DefaultConfig()
	nodeCfg := node.DefaultConfig()

	return &Config{
		BaseConfig: BaseConfig{
			LogLevel:       log.Info.String(),
			MetricsAddress: metrics.DefaultAddress,
		},
		Overseer: &OverseerConfig{
			ChannelCapacity:   overseerCfg.ChannelCapacity,
			SignalCapacity:    overseerCfg.SignalCapacity,
			QueueSizeWarning:  overseerCfg.QueueSizeWarning,
			BlockingTaskSlots: overseerCfg.BlockingTaskSlots,
			StopTimeout:       overseerCfg.StopTimeout,
		},
		Node: &NodeConfig{
			ParaID:               nodeCfg.ParaID,
			Candidates:           nodeCfg.Candidates,
			Interval:             nodeCfg.Interval,
			Timeout:              nodeCfg.Timeout,
			DatabasePath:         nodeCfg.DatabasePath,
			MaxPoVSize:           nodeCfg.MaxPoVSize,
			ValidationTimeout:    nodeCfg.ValidationTimeout,
			ParticipationTimeout: nodeCfg.ParticipationTimeout,
		},
		Variant: &VariantConfig{
			Name:       string(variants.Honest),
			Percentage: 100,
		},
	}
}

// ValidateBasic performs basic validation on the config
func (c *Config) ValidateBasic() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	_, err = log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("base config: %w", err)
	}

	for _, name := range variants.Names {
		if c.Variant.Name == string(name) {
			return nil
		}
	}
	return fmt.Errorf("variant config: %w: %q", errUnknownVariant, c.Variant.Name)
}

// Level returns the parsed log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.Info
	}
	return level
}

// NodeConfig returns the node configuration using the metered channel
// metrics given.
func (c *Config) NodeConfig(channelMetrics *metered.Metrics) node.Config {
	return node.Config{
		ParaID:               c.Node.ParaID,
		Candidates:           c.Node.Candidates,
		Interval:             c.Node.Interval,
		Timeout:              c.Node.Timeout,
		DatabasePath:         c.Node.DatabasePath,
		MaxPoVSize:           c.Node.MaxPoVSize,
		ValidationTimeout:    c.Node.ValidationTimeout,
		ParticipationTimeout: c.Node.ParticipationTimeout,
		Overseer: overseer.Config{
			ChannelCapacity:   c.Overseer.ChannelCapacity,
			SignalCapacity:    c.Overseer.SignalCapacity,
			QueueSizeWarning:  c.Overseer.QueueSizeWarning,
			BlockingTaskSlots: c.Overseer.BlockingTaskSlots,
			StopTimeout:       c.Overseer.StopTimeout,
			Metrics:           channelMetrics,
		},
	}
}

// VariantConfig returns the variant configuration using the interception
// metrics given.
func (c *Config) VariantConfig(interceptionMetrics *malus.Metrics) variants.Config {
	return variants.Config{
		Name:                variants.Name(c.Variant.Name),
		Percentage:          c.Variant.Percentage,
		FakeValidationError: c.Variant.FakeValidationError,
		Seed:                c.Variant.Seed,
		Metrics:             interceptionMetrics,
	}
}

// NewViper returns a viper instance reading environment variables prefixed
// with EnvPrefix, with the defaults of DefaultConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("log", c.LogLevel)
	v.SetDefault("publish-metrics", c.PublishMetrics)
	v.SetDefault("metrics-address", c.MetricsAddress)

	v.SetDefault("overseer.channel-capacity", c.Overseer.ChannelCapacity)
	v.SetDefault("overseer.signal-capacity", c.Overseer.SignalCapacity)
	v.SetDefault("overseer.queue-size-warning", c.Overseer.QueueSizeWarning)
	v.SetDefault("overseer.blocking-task-slots", c.Overseer.BlockingTaskSlots)
	v.SetDefault("overseer.stop-timeout", c.Overseer.StopTimeout)

	v.SetDefault("node.para-id", c.Node.ParaID)
	v.SetDefault("node.candidates", c.Node.Candidates)
	v.SetDefault("node.interval", c.Node.Interval)
	v.SetDefault("node.timeout", c.Node.Timeout)
	v.SetDefault("node.database-path", c.Node.DatabasePath)
	v.SetDefault("node.max-pov-size", c.Node.MaxPoVSize)
	v.SetDefault("node.validation-timeout", c.Node.ValidationTimeout)
	v.SetDefault("node.participation-timeout", c.Node.ParticipationTimeout)

	v.SetDefault("variant.name", c.Variant.Name)
	v.SetDefault("variant.percentage", c.Variant.Percentage)
	v.SetDefault("variant.fake-validation-error", c.Variant.FakeValidationError)
	v.SetDefault("variant.seed", c.Variant.Seed)
}

// Load reads the config file, if any, and unmarshals the configuration from
// v, then validates it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	c := DefaultConfig()
	err := v.Unmarshal(c)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	err = c.ValidateBasic()
	if err != nil {
		return nil, err
	}
	return c, nil
}
