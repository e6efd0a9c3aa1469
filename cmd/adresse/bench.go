package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adresse/internal/bench"
)

var (
	benchOut   string
	benchCases string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Score the pipeline on labelled sentences",
	Long: `Run every labelled sentence through the pipeline and compare fullText,
voie and commune with the expected values.

Examples:
  adresse bench
  adresse bench --out reports/llama3.json`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVarP(&benchOut, "out", "o", "", "write the JSON report to this file")
	benchCmd.Flags().StringVar(&benchCases, "cases", "", "YAML file of labelled sentences (embedded set by default)")
}

func runBench(cmd *cobra.Command, _ []string) error {
	cases, err := bench.LoadCases(benchCases)
	if err != nil {
		return err
	}
	a, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := bench.Run(cmd.Context(), a.Service, a.Model.Name(), cases)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Render())
	if benchOut != "" {
		if err := report.WriteJSON(benchOut); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", benchOut)
	}
	return nil
}
