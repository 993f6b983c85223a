package main

import (
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-pool statistics",
		Long: `The stats command builds the pools described by the environment and
shows their block size, stride, capacity and unused trailing bytes.

Example:
  slobctl stats
  SLOB_POOLS=16:4096,64:8192 slobctl stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd)
		},
	}
}

func runStats(cmd *cobra.Command) error {
	a, _, err := newAllocator(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	stats := a.Stats()
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	printInfo(tw, "POOL\tBLOCK\tSTRIDE\tCAPACITY\tFREE\tIN USE\tSTORAGE\tUNUSED\n")
	for _, st := range stats {
		printInfo(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			st.ID, st.BlockSize, st.Stride, st.Capacity, st.Free, st.InUse, st.StorageBytes, st.TrailingBytes)
	}
	return tw.Flush()
}
