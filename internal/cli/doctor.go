package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgnest-project/pgnest/internal/doctor"
)

var doctorStrict bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment for problems",
	Long: `Check the environment for problems.

Inspects the resolved configuration, the worker binary, the data
directory and the installation cache, and reports anything that would
make a later 'up' fail. Use --strict to include the cache inventory.`,
	Run: func(cmd *cobra.Command, args []string) {
		boot := requireBootstrap()

		result, err := doctor.NewDoctor(boot).Check(doctorStrict)
		if err != nil {
			fmtErr("doctor: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(result)
			if !result.Healthy {
				os.Exit(1)
			}
			return
		}

		if len(result.Findings) == 0 {
			fmt.Println("Everything looks healthy.")
			return
		}

		fmt.Printf("Findings (%d):\n", len(result.Findings))
		for _, f := range result.Findings {
			fmt.Printf("  [%s] %s: %s\n", f.Severity, f.Category, f.Description)
		}

		if !result.Healthy {
			os.Exit(1)
		}
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "include the cache inventory check")
	rootCmd.AddCommand(doctorCmd)
}
