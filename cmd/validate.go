package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethpandaops/hilbench/internal/report"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a suite definition",
	Long:  `Parses the suite file, applies defaults and reports every validation problem without touching the simulator.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		suite, err := loadSuite(Logger)
		if err != nil {
			return err
		}

		fmt.Printf("Suite %q is valid (%d scenarios, %d faults)\n", suite.Name, len(suite.Scenarios), len(suite.Faults))
		fmt.Println(report.RenderToString(
			[]string{"Scenario", "Kind", "Fault", "Mechanism", "Setup"},
			scenarioRows(suite),
			report.WithRowSeparator(true),
		))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func scenarioRows(suite *scenario.Suite) [][]string {
	rows := make([][]string, 0, len(suite.Scenarios))

	for _, sc := range suite.Scenarios {
		rows = append(rows, []string{
			sc.Name,
			string(sc.Kind),
			sc.Fault,
			describeFault(suite.Faults[sc.Fault]),
			fmt.Sprintf("%d", len(sc.Setup)),
		})
	}

	return rows
}

func describeFault(fc scenario.FaultControl) string {
	switch {
	case fc.Signal != "":
		return "signal " + fc.Signal
	case fc.Component != nil:
		return "component " + fc.Component.Path
	default:
		return "(unbound)"
	}
}

func sortedKeys(m map[string]scenario.FaultControl) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
