package cmd

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/interactive"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive mode",
	Long:  `Pick scenarios from the suite and run them, validate the suite, probe bindings or show the configuration.`,
	Run: func(_ *cobra.Command, _ []string) {
		RunInteractive()
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// RunInteractive shows the main menu until the user exits.
func RunInteractive() {
	fmt.Println("hilbench - Interactive Mode")
	fmt.Println("===========================")
	fmt.Println()

	prompter := interactive.SurveyPrompter{}

	for {
		options := []interactive.MenuOption{
			{
				Name:        "⚡ Run Scenarios",
				Description: "Pick scenarios from the suite and run them",
				Action: func() error {
					reportError(runPicked(prompter))
					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "✅ Validate Suite",
				Description: "Load and validate " + suiteFile,
				Action: func() error {
					reportError(validateCmd.RunE(validateCmd, nil))
					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "🔌 Probe Bindings",
				Description: "Load the model and print the binding table",
				Action: func() error {
					reportError(probeCmd.RunE(probeCmd, nil))
					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "📋 Show Config",
				Description: "Display current environment configuration",
				Action: func() error {
					reportError(showConfig())
					interactive.PauseForEnter()
					return nil
				},
			},
		}

		if err := interactive.ShowMenu(prompter, "What would you like to do?", options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Printf("\n❌ Error: %v\n", err)
		}

		fmt.Println()
	}
}

func runPicked(p interactive.Prompter) error {
	suite, err := loadSuite(Logger)
	if err != nil {
		return err
	}

	names, err := interactive.PickScenarios(p, suite.Names())
	if err != nil {
		return err
	}

	scenarios, err := selectScenarios(suite, names)
	if err != nil {
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Backend == config.BackendBridge {
		ok, err := p.Confirm(fmt.Sprintf("Inject %d fault(s) on the bench at %s?", len(scenarios), cfg.BridgeURL), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Run canceled.")
			return nil
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	return runScenarios(ctx, cfg, suite, scenarios, runOptions{})
}

func reportError(err error) {
	if err != nil && !errors.Is(err, interactive.ErrExit) {
		fmt.Printf("\n❌ Error: %v\n", err)
	}
}
