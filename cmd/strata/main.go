package main

import (
	"os"

	"github.com/stratadb/strata/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(cmd.NewQueryCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
