package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgnest-project/pgnest/pkg/color"
	"github.com/pgnest-project/pgnest/pkg/logging"
)

var (
	jsonOutput bool
	noColor    bool
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "pgnest",
		Short: "pgnest - throwaway PostgreSQL clusters for tests",
		Long: `pgnest manages short-lived PostgreSQL clusters: it downloads or reuses
server binaries, initialises a scratch data directory, starts the server
and tears everything down again. Clusters run in-process or, when
privilege separation is needed, through a worker subprocess.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
			logging.SetGlobal(logging.New(logging.ParseLevel(logLevel), logging.FormatText))
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
