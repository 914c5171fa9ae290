package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/logger"
)

// NewQueryCommand runs one query against a fact file loaded into the
// in-memory store and prints the finished result as JSON.
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Execute a query against a fact file",
		RunE:  runQuery,
		Args:  cobra.NoArgs,
	}

	bindQueryFlags(cmd.Flags())
	_ = cmd.MarkFlagRequired("facts")
	_ = cmd.MarkFlagRequired("query")

	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		_ = viper.BindPFlags(cmd.Flags())
	}

	return cmd
}

func bindQueryFlags(flags *pflag.FlagSet) {
	flags.String("facts", "", "path to the JSON fact file")
	flags.String("query", "", "path to the JSON query file")
	flags.Int64("fuel-limit", 0, "work-unit budget for the query, 0 for unlimited")
	flags.Int("parallelism", 0, "bound on concurrently processed subjects")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("log-level", "info", "log level, or none")
}

func runQuery(cmd *cobra.Command, _ []string) error {
	log, err := logger.NewLogger(viper.GetString("log-format"), viper.GetString("log-level"))
	if err != nil {
		return err
	}

	ds, err := loadFacts(viper.GetString("facts"))
	if err != nil {
		return err
	}

	q, rawSelect, opts, err := loadQuery(ds, viper.GetString("query"))
	if err != nil {
		return err
	}

	eng, err := engine.New(ds,
		engine.WithLogger(log),
		engine.WithParallelism(viper.GetInt("parallelism")),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	sel, err := eng.ParseSelect(rawSelect, opts)
	if err != nil {
		return err
	}

	result, err := eng.Execute(cmd.Context(), &engine.Request{
		Query:     q,
		Select:    sel,
		FuelLimit: viper.GetInt64("fuel-limit"),
	})
	if err != nil {
		if errors.Is(err, engine.ErrNoStrategy) {
			return fmt.Errorf("query shape is not supported by the crawl strategies")
		}
		return err
	}

	out, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
