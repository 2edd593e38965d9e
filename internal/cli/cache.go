package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgnest-project/pgnest/internal/cache"
	"github.com/pgnest-project/pgnest/pkg/progress"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the installation cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached installations",
	Run: func(cmd *cobra.Command, args []string) {
		boot := requireBootstrap()
		installs := cache.New(boot.CacheDir).List()

		if jsonOutput {
			type entry struct {
				Version string `json:"version"`
				Dir     string `json:"dir"`
			}
			entries := make([]entry, 0, len(installs))
			for _, inst := range installs {
				entries = append(entries, entry{Version: inst.Version.String(), Dir: inst.Dir})
			}
			outputJSON(entries)
			return
		}

		if len(installs) == 0 {
			fmt.Println("Cache is empty.")
			return
		}
		for _, inst := range installs {
			fmt.Printf("  %-12s %s\n", inst.Version.String(), inst.Dir)
		}
	},
}

var cachePopulateCmd = &cobra.Command{
	Use:   "populate <version> <source-dir>",
	Short: "Store an unpacked installation in the cache",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		boot := requireBootstrap()
		c := cache.New(boot.CacheDir)
		if !jsonOutput {
			c.Progress = func(op string, current, total int, message string) {
				fmt.Fprintf(os.Stderr, "\r%s: %d/%d", op, current, total)
				if current == total {
					fmt.Fprintln(os.Stderr)
				}
			}
		} else {
			c.Progress = progress.Noop
		}

		if err := c.Populate(args[0], args[1]); err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		if !jsonOutput {
			fmt.Printf("Cached %s.\n", args[0])
		}
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePopulateCmd)
	rootCmd.AddCommand(cacheCmd)
}
