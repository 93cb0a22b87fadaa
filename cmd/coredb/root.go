package main

import (
	"github.com/spf13/cobra"

	"coredb/pkg/config"
	"coredb/pkg/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:               "coredb",
		Short:             "coredb demo server",
		Long:              "coredb drives a scripted workload over the storage core: disk manager, buffer pool, B+ tree index, lock manager, and executors.",
		PersistentPreRunE: rootPreRun,
	}

	cfg config.Config
)

func rootPreRun(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	logging.InitDefault()
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}
