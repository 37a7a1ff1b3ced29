// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// treasurysim loads a ledger scenario into an in-memory state and runs the
// treasury converter against it.
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/treasury/converter"
	"github.com/luxfi/treasury/registry"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(log.Root()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(logger log.Logger) *cobra.Command {
	var scenarioPath string
	root := &cobra.Command{
		Use:          "treasurysim",
		Short:        "Simulate treasury conversions against a seeded ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", "scenario.yaml", "scenario file (yaml, json or toml)")

	load := func() (*simulation, error) {
		s, err := LoadScenario(scenarioPath)
		if err != nil {
			return nil, err
		}
		return newSimulation(s, logger)
	}
	root.AddCommand(newEstimateCommand(load), newConvertCommand(load))
	return root
}

func newEstimateCommand(load func() (*simulation, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate [token...]",
		Short: "Print the input needed and the target output per token",
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := load()
			if err != nil {
				return err
			}
			tokens, err := sim.tokens(args)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tSTRATEGY\tBALANCE\tAMOUNT IN\tAMOUNT OUT\tREASON")
			for _, tok := range tokens {
				e := sim.estimate(tok)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					label(e.Token), e.Strategy, amount(e.Balance), amount(e.AmountIn), amount(e.AmountOut), e.Reason)
			}
			return w.Flush()
		},
	}
}

func newConvertCommand(load func() (*simulation, error)) *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "convert [token...]",
		Short: "Convert tokens in order and print the swap records",
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := load()
			if err != nil {
				return err
			}
			from, err := parseAddress(caller)
			if err != nil {
				return err
			}
			tokens, err := sim.tokens(args)
			if err != nil {
				return err
			}
			for _, tok := range tokens {
				rec, err := sim.convert(from, tok)
				if err != nil {
					return fmt.Errorf("convert %s: %s: %w", tok.Hex(), converter.ReasonOf(err), err)
				}
				printRecord(cmd.OutOrStdout(), rec)
			}
			return sim.db.Commit()
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "0xde00000000000000000000000000000000000001", "account triggering the conversions")
	return cmd
}

func printRecord(w io.Writer, rec converter.SwapRecord) {
	fmt.Fprintf(w, "swap kind=%d token=%s in=%s out=%s beneficiary=%s->%s\n",
		rec.Kind, label(rec.Token), rec.AmountIn.Dec(), rec.AmountOut.Dec(), rec.BalanceBefore.Dec(), rec.BalanceAfter.Dec())
}

func amount(v *uint256.Int) string {
	if v == nil {
		return "-"
	}
	return v.Dec()
}

func label(addr common.Address) string {
	if name := registry.NameOf(addr); name != "" {
		return name
	}
	return addr.Hex()
}
