package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgnest-project/pgnest/internal/gc"
)

var (
	gcDryRun bool
	gcKeep   int
	gcMinAge time.Duration
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim disk space from old runs",
	Long: `Reclaim disk space from old runs.

Removes stale scratch directories, abandoned temporary data
directories, and cached installations beyond the retention count.
Directories touched within --min-age are left alone.`,
	Run: func(cmd *cobra.Command, args []string) {
		boot := requireBootstrap()

		collector := gc.NewCollector(boot.CacheDir, gc.Policy{
			KeepInstallations: gcKeep,
			MinAge:            gcMinAge,
		})
		plan, err := collector.Plan()
		if err != nil {
			fmtErr("gc plan: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(plan)
		} else if plan.Empty() {
			fmt.Println("Nothing to clean up.")
		} else {
			for _, dir := range plan.ScratchDir {
				fmt.Printf("  scratch  %s\n", dir)
			}
			for _, dir := range plan.DataDirs {
				fmt.Printf("  data     %s\n", dir)
			}
			for _, dir := range plan.CacheDirs {
				fmt.Printf("  cache    %s\n", dir)
			}
		}

		if gcDryRun || plan.Empty() {
			return
		}
		if err := collector.Run(plan); err != nil {
			fmtErr("gc run: %v", err)
			os.Exit(1)
		}
		if !jsonOutput {
			fmt.Println("Cleanup complete.")
		}
	},
}

func init() {
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report what would be removed without removing it")
	gcCmd.Flags().IntVar(&gcKeep, "keep", 2, "cached installations to keep")
	gcCmd.Flags().DurationVar(&gcMinAge, "min-age", 24*time.Hour, "protect directories touched more recently than this")
	rootCmd.AddCommand(gcCmd)
}
