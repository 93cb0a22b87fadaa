package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coredb/pkg/execution"
	"coredb/pkg/logging"
	"coredb/pkg/tuple"
)

var benchRows int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Insert a batch of rows into a fresh demo table and report throughput",
	RunE:  benchRun,
}

func init() {
	benchCmd.Flags().IntVar(&benchRows, "rows", 10_000, "number of rows to insert")
	rootCmd.AddCommand(benchCmd)
}

func benchRun(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(cfg)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	stop := eng.startDeadlockDetector()
	defer stop()
	defer eng.close()

	rows := make([]*tuple.Tuple, benchRows)
	for i := range rows {
		rows[i] = accountRow(int64(i), int64(i%1000), "bench")
	}

	txn := eng.begin()
	ins := execution.NewInsert(eng.accounts, eng.lm, newStaticSource(rows))
	if err := ins.Init(txn); err != nil {
		return err
	}
	defer ins.Close()

	start := time.Now()
	inserted := 0
	for {
		_, _, ok, err := ins.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		inserted++
	}
	elapsed := time.Since(start)

	logging.Info("bench complete", "rows", inserted, "elapsed", elapsed.String())
	fmt.Printf("inserted %d rows in %s (%.0f rows/sec)\n",
		inserted, elapsed, float64(inserted)/elapsed.Seconds())
	return nil
}
