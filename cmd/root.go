// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/krfmo/gridsim/config"
	"github.com/krfmo/gridsim/runner"
)

var (
	scenarioPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "gridsim",
	Short: "Discrete-event simulator for grid/utility computing scheduling",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario file to completion",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		scenario, err := config.LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("loading scenario: %v", err)
		}
		if err := scenario.Validate(); err != nil {
			logrus.Fatalf("invalid scenario: %v", err)
		}

		logrus.Infof("starting scenario %q: %d resource(s), %d job(s), %d reservation(s)",
			scenarioPath, len(scenario.Resources), len(scenario.Jobs), len(scenario.Reservations))

		result, err := runner.Run(scenario)
		if err != nil {
			logrus.Fatalf("scenario run failed: %v", err)
		}
		for _, line := range result.Summary() {
			fmt.Println(line)
		}
		logrus.Info("scenario complete")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to a scenario YAML file (required)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "log level (debug, info, warn, error)")
	_ = runCmd.MarkFlagRequired("scenario")

	rootCmd.AddCommand(runCmd)
}
