// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package commands

import (
	"fmt"

	cfg "github.com/ChainSafe/malus/config"
	"github.com/ChainSafe/malus/dot/parachain/malus/variants"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "cmd"))

// NewRootCommand creates the root command with one subcommand per variant.
func NewRootCommand() (*cobra.Command, error) {
	v := cfg.NewViper()

	cmd := &cobra.Command{
		Use:   "malus",
		Short: "Malicious parachain validator for adversarial testing",
		Long: `Malus runs the parachain validator subsystems with some of their
messages intercepted, dropped or rewritten by a variant.
Usage:
	malus honest --candidates 10
	malus back-garbage-candidate --publish-metrics
	malus dispute-ancestor --percentage 50 --fake-validation-error pov_hash_mismatch
	malus drop-dispute-statements --config malus.toml`,
		SilenceUsage: true,
	}

	if err := addRootFlags(v, cmd); err != nil {
		return nil, err
	}

	for _, name := range variants.Names {
		subCmd, err := newVariantCommand(v, name)
		if err != nil {
			return nil, fmt.Errorf("creating %s command: %w", name, err)
		}
		cmd.AddCommand(subCmd)
	}

	return cmd, nil
}

// addRootFlags adds the root flags to the command
func addRootFlags(v *viper.Viper, cmd *cobra.Command) error {
	defaults := cfg.DefaultConfig()

	cmd.PersistentFlags().String("config", "", "Path to a TOML configuration file")

	// Base Config
	if err := addStringFlagBindViper(v, cmd,
		"log",
		defaults.LogLevel,
		"Log level: trace, debug, info, warn, error or critical",
		"log"); err != nil {
		return fmt.Errorf("failed to add --log flag: %s", err)
	}
	if err := addBoolFlagBindViper(v, cmd,
		"publish-metrics",
		defaults.PublishMetrics,
		"Publish the metrics over HTTP",
		"publish-metrics"); err != nil {
		return fmt.Errorf("failed to add --publish-metrics flag: %s", err)
	}
	if err := addStringFlagBindViper(v, cmd,
		"metrics-address",
		defaults.MetricsAddress,
		"Listening address of the metrics server",
		"metrics-address"); err != nil {
		return fmt.Errorf("failed to add --metrics-address flag: %s", err)
	}

	// Node Config
	if err := addIntFlagBindViper(v, cmd,
		"candidates",
		defaults.Node.Candidates,
		"Number of candidates to second",
		"node.candidates"); err != nil {
		return fmt.Errorf("failed to add --candidates flag: %s", err)
	}
	if err := addDurationFlagBindViper(v, cmd,
		"interval",
		defaults.Node.Interval,
		"Time between two candidates",
		"node.interval"); err != nil {
		return fmt.Errorf("failed to add --interval flag: %s", err)
	}
	if err := addDurationFlagBindViper(v, cmd,
		"timeout",
		defaults.Node.Timeout,
		"Maximum time waiting for the candidates to be processed",
		"node.timeout"); err != nil {
		return fmt.Errorf("failed to add --timeout flag: %s", err)
	}
	if err := addStringFlagBindViper(v, cmd,
		"database-path",
		defaults.Node.DatabasePath,
		"Directory of the availability store, in memory if empty",
		"node.database-path"); err != nil {
		return fmt.Errorf("failed to add --database-path flag: %s", err)
	}

	return nil
}
