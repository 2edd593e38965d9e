package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pgnest-project/pgnest/internal/datadir"
	"github.com/pgnest-project/pgnest/pkg/color"
)

type statusReport struct {
	Up        bool   `json:"up"`
	Running   bool   `json:"running"`
	Name      string `json:"name,omitempty"`
	Host      string `json:"host,omitempty"`
	Port      uint16 `json:"port,omitempty"`
	Database  string `json:"database,omitempty"`
	DataDir   string `json:"data_dir,omitempty"`
	DataValid bool   `json:"data_valid"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cluster status",
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fmtErr("cannot get current directory: %v", err)
			os.Exit(1)
		}

		report := statusReport{}
		st, exists := loadState(cwd)
		if exists {
			report.Up = true
			report.Name = st.Name
			report.Host = st.Settings.Host
			report.Port = st.Settings.Port
			report.Database = st.Settings.Database
			report.DataDir = st.Settings.DataDir
			report.DataValid = datadir.IsValid(st.Settings.DataDir)
			// postmaster.pid exists only while the server runs
			_, err := os.Stat(filepath.Join(st.Settings.DataDir, "postmaster.pid"))
			report.Running = err == nil
		}

		if jsonOutput {
			outputJSON(report)
			return
		}

		if !report.Up {
			fmt.Println("No cluster is up here.")
			return
		}
		if report.Running {
			fmt.Println(color.Green("Cluster is running."))
		} else {
			fmt.Println(color.Yellow("Cluster is up but the server is not running."))
		}
		if report.Name != "" {
			fmt.Printf("  Name:     %s\n", report.Name)
		}
		fmt.Printf("  Host:     %s\n", report.Host)
		fmt.Printf("  Port:     %d\n", report.Port)
		fmt.Printf("  Database: %s\n", report.Database)
		fmt.Printf("  Data dir: %s (valid: %v)\n", report.DataDir, report.DataValid)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
