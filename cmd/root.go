// Package cmd contains the commands included in the strata binary.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI
// flags, environment variables prefixed with STRATA, or config.yaml (in
// that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("STRATA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/strata", "$HOME/.strata", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:   "strata",
		Short: "An embeddable graph database storing facts as immutable, time-stamped statements",
		Long: `An embeddable graph database storing facts as immutable, time-stamped statements.

Queries run "as of" a fixed transaction id against sorted indexes over the
fact set, with a fuel budget bounding the work one query may perform.`,
	}
}
