// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cfg "github.com/ChainSafe/malus/config"
	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/malus/variants"
	"github.com/ChainSafe/malus/dot/parachain/node"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/ChainSafe/malus/internal/metrics"
	"github.com/ChainSafe/malus/lib/metered"
	"github.com/ChainSafe/malus/lib/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var variantDescriptions = map[variants.Name]string{
	variants.Honest:                "Run the subsystems without interception",
	variants.BackGarbage:           "Back every candidate, valid or not",
	variants.SuggestGarbage:        "Second candidates carrying a garbage PoV and back them",
	variants.DisputeAncestor:       "Report a percentage of the valid candidates as invalid",
	variants.DropDisputeStatements: "Drop the dispute statements issued by candidate backing",
}

func newVariantCommand(v *viper.Viper, name variants.Name) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   string(name),
		Short: variantDescriptions[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execVariant(cmd, v, name)
		},
	}

	if name != variants.DisputeAncestor {
		return cmd, nil
	}

	defaults := cfg.DefaultConfig()
	if err := addUint8FlagBindViper(v, cmd,
		"percentage",
		defaults.Variant.Percentage,
		"Percentage of the candidates reported as invalid",
		"variant.percentage"); err != nil {
		return nil, fmt.Errorf("failed to add --percentage flag: %s", err)
	}
	if err := addStringFlagBindViper(v, cmd,
		"fake-validation-error",
		defaults.Variant.FakeValidationError,
		"Reason given for the invalid candidates, such as pov_hash_mismatch",
		"variant.fake-validation-error"); err != nil {
		return nil, fmt.Errorf("failed to add --fake-validation-error flag: %s", err)
	}
	if err := addInt64FlagBindViper(v, cmd,
		"seed",
		defaults.Variant.Seed,
		"Seed of the candidate sampling",
		"variant.seed"); err != nil {
		return nil, fmt.Errorf("failed to add --seed flag: %s", err)
	}
	return cmd, nil
}

func execVariant(cmd *cobra.Command, v *viper.Viper, name variants.Name) error {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get --config: %s", err)
	}

	v.Set("variant.name", string(name))
	config, err := cfg.Load(v, configFile)
	if err != nil {
		return err
	}
	log.PatchLevel(config.Level())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	channelMetrics, err := metered.NewMetrics(registry)
	if err != nil {
		return err
	}
	interceptionMetrics, err := malus.NewMetrics(registry)
	if err != nil {
		return err
	}

	variant, err := variants.New(config.VariantConfig(interceptionMetrics))
	if err != nil {
		return err
	}

	n, err := node.NewNode(config.NodeConfig(channelMetrics), variant)
	if err != nil {
		return err
	}

	serviceRegistry := services.NewServiceRegistry(logger)
	if config.PublishMetrics {
		serviceRegistry.RegisterService(metrics.NewServer(config.MetricsAddress, registry))
	}
	serviceRegistry.RegisterService(n)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = serviceRegistry.StartAll()
	if err != nil {
		return errors.Join(err, serviceRegistry.StopAll())
	}

	summary, runErr := n.Run(ctx)
	stopErr := serviceRegistry.StopAll()

	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return errors.Join(runErr, stopErr)
}
