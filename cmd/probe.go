package cmd

import (
	"context"
	"fmt"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/report"
	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Load the model and print how every configured name is bound",
	Long: `Starts a session, resolves every signal the suite uses against the simulator's
catalog and prints the binding table. No fault is applied and protection is not armed.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		suite, err := loadSuite(Logger)
		if err != nil {
			return err
		}

		cfg, err := config.FromEnv()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		clk := clock.Real{}

		simulator, closeSim, err := openSimulator(ctx, Logger, cfg, suite, clk)
		if err != nil {
			return err
		}
		defer closeSim()

		return harness.WithSession(ctx, Logger, simulator, suite, clk, func(_ context.Context, s *harness.Session) error {
			fmt.Println(report.RenderToString(
				[]string{"Name", "Accessor", "Resolved"},
				bindingRows(s.Bindings()),
				report.WithBorder(false),
			))

			faults := make([]string, 0, len(suite.Faults))
			for _, id := range sortedKeys(suite.Faults) {
				faults = append(faults, fmt.Sprintf("%s=%s", id, describeFault(suite.Faults[id])))
			}
			fmt.Printf("Faults: %s\n", joinOrDash(faults))

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func bindingRows(b *sim.Bindings) [][]string {
	all := b.All()
	rows := make([][]string, 0, len(all))

	for _, binding := range all {
		resolved := "yes"
		if !binding.Resolved {
			resolved = "no (reads as NaN)"
		}
		rows = append(rows, []string{binding.Name, string(binding.Kind), resolved})
	}

	return rows
}
