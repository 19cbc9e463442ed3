// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package commands

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addStringFlagBindViper adds a string flag to the given command and binds it to the given viper name
func addStringFlagBindViper(v *viper.Viper, cmd *cobra.Command,
	name,
	defaultValue,
	usage,
	viperBindName string,
) error {
	cmd.PersistentFlags().String(name, defaultValue, usage)
	return v.BindPFlag(viperBindName, cmd.PersistentFlags().Lookup(name))
}

// addIntFlagBindViper adds an int flag to the given command and binds it to the given viper name
func addIntFlagBindViper(
	v *viper.Viper,
	cmd *cobra.Command,
	name string,
	defaultValue int,
	usage string,
	viperBindName string,
) error {
	cmd.PersistentFlags().Int(name, defaultValue, usage)
	return v.BindPFlag(viperBindName, cmd.PersistentFlags().Lookup(name))
}

// addBoolFlagBindViper adds a bool flag to the given command and binds it to the given viper name
func addBoolFlagBindViper(
	v *viper.Viper,
	cmd *cobra.Command,
	name string,
	defaultValue bool,
	usage string,
	viperBindName string,
) error {
	cmd.PersistentFlags().Bool(name, defaultValue, usage)
	return v.BindPFlag(viperBindName, cmd.PersistentFlags().Lookup(name))
}

// addUint8FlagBindViper adds a uint8 flag to the given command and binds it to the given viper name
func addUint8FlagBindViper(
	v *viper.Viper,
	cmd *cobra.Command,
	name string,
	defaultValue uint8,
	usage string,
	viperBindName string,
) error {
	cmd.PersistentFlags().Uint8(name, defaultValue, usage)
	return v.BindPFlag(viperBindName, cmd.PersistentFlags().Lookup(name))
}

// addInt64FlagBindViper adds an int64 flag to the given command and binds it to the given viper name
func addInt64FlagBindViper(
	v *viper.Viper,
	cmd *cobra.Command,
	name string,
	defaultValue int64,
	usage string,
	viperBindName string,
) error {
	cmd.PersistentFlags().Int64(name, defaultValue, usage)
	return v.BindPFlag(viperBindName, cmd.PersistentFlags().Lookup(name))
}

// addDurationFlagBindViper adds a duration flag to the given command and binds it to the given viper name
func addDurationFlagBindViper(
	v *viper.Viper,
	cmd *cobra.Command,
	name string,
	defaultValue time.Duration,
	usage string,
	viperBindName string,
) error {
	cmd.PersistentFlags().Duration(name, defaultValue, usage)
	return v.BindPFlag(viperBindName, cmd.PersistentFlags().Lookup(name))
}

