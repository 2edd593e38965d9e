package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgnest-project/pgnest/internal/cluster"
	"github.com/pgnest-project/pgnest/pkg/color"
	"github.com/pgnest-project/pgnest/pkg/pathutil"
)

var (
	upName    string
	upVersion string
	upPort    uint16
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start a PostgreSQL cluster",
	Long: `Start a PostgreSQL cluster.

Downloads server binaries if needed, initialises the data directory and
starts the server. The cluster keeps running after pgnest exits; use
'pgnest down' to stop it.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fmtErr("cannot get current directory: %v", err)
			os.Exit(1)
		}
		if _, exists := loadState(cwd); exists {
			fmtErr("a cluster is already up here; run 'pgnest down' first")
			os.Exit(1)
		}

		boot := requireBootstrap()
		if upVersion != "" {
			boot.Settings.Version = upVersion
		}
		if upPort != 0 {
			boot.Settings.Port = upPort
		}
		if upName != "" {
			name, err := pathutil.ValidateClusterName(upName)
			if err != nil {
				fmtErr("%v", err)
				os.Exit(1)
			}
			boot.Settings.DataDir = filepath.Join(boot.Settings.DataDir, name)
			boot.Settings.Temporary = false
		}

		handle, _, err := cluster.Launch(cluster.OwnedRuntime{}, boot)
		if err != nil {
			fmtErr("start cluster: %v", err)
			os.Exit(1)
		}

		st := &clusterState{
			Name:      upName,
			StartedAt: time.Now().UTC(),
			Settings:  handle.Settings(),
		}
		if err := saveState(cwd, st); err != nil {
			fmtErr("record cluster state: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"host":     handle.Host(),
				"port":     handle.Port(),
				"username": handle.Username(),
				"database": handle.Database(),
				"data_dir": handle.Settings().DataDir,
			})
			return
		}
		fmt.Println(color.Green("Cluster is up."))
		fmt.Printf("  Host:     %s\n", handle.Host())
		fmt.Printf("  Port:     %d\n", handle.Port())
		fmt.Printf("  User:     %s\n", handle.Username())
		fmt.Printf("  Database: %s\n", handle.Database())
		fmt.Printf("  Data dir: %s\n", handle.Settings().DataDir)
	},
}

func init() {
	upCmd.Flags().StringVar(&upName, "name", "", "cluster name (kept under a named data directory)")
	upCmd.Flags().StringVar(&upVersion, "version", "", "PostgreSQL version requirement")
	upCmd.Flags().Uint16Var(&upPort, "port", 0, "port to listen on")
	rootCmd.AddCommand(upCmd)
}
