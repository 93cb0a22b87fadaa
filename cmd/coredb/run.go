package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coredb/pkg/execution"
	"coredb/pkg/logging"
	"coredb/pkg/tuple"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scripted insert/scan/filter workload against a fresh demo table",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(cfg)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	stop := eng.startDeadlockDetector()
	defer stop()
	defer eng.close()

	if err := seedAccounts(eng); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}

	if err := printAllAccounts(eng); err != nil {
		return fmt.Errorf("scan accounts: %w", err)
	}

	if err := printWealthy(eng, 150); err != nil {
		return fmt.Errorf("filter accounts: %w", err)
	}

	return nil
}

func seedAccounts(eng *engine) error {
	txn := eng.begin()
	rows := []*tuple.Tuple{
		accountRow(1, 100, "ada"),
		accountRow(2, 250, "grace"),
		accountRow(3, 40, "alan"),
	}
	source := newStaticSource(rows)
	ins := execution.NewInsert(eng.accounts, eng.lm, source)
	if err := ins.Init(txn); err != nil {
		return err
	}
	defer ins.Close()

	for {
		_, _, ok, err := ins.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	logging.Info("seeded accounts", "count", len(rows))
	return nil
}

func printAllAccounts(eng *engine) error {
	txn := eng.begin()
	scan := execution.NewSeqScan(eng.accounts, eng.lm, nil)
	if err := scan.Init(txn); err != nil {
		return err
	}
	defer scan.Close()

	for {
		row, _, ok, err := scan.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		printAccountRow(row)
	}
	return nil
}

func printWealthy(eng *engine, minBalance int64) error {
	txn := eng.begin()
	scan := execution.NewSeqScan(eng.accounts, eng.lm, func(t *tuple.Tuple) bool {
		return t.GetValue(accountsSchema, 1).Int >= minBalance
	})
	if err := scan.Init(txn); err != nil {
		return err
	}
	defer scan.Close()

	fmt.Printf("accounts with balance >= %d:\n", minBalance)
	for {
		row, _, ok, err := scan.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		printAccountRow(row)
	}
	return nil
}

func accountRow(id, balance int64, owner string) *tuple.Tuple {
	return tuple.NewTuple(accountsSchema, []tuple.Value{
		tuple.Int64Value(id),
		tuple.Int64Value(balance),
		tuple.VarcharValue(owner),
	})
}

func printAccountRow(row *tuple.Tuple) {
	fmt.Printf("  id=%d balance=%d owner=%s\n",
		row.GetValue(accountsSchema, 0).Int,
		row.GetValue(accountsSchema, 1).Int,
		row.GetValue(accountsSchema, 2).Str)
}
