package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgnest-project/pgnest/internal/worker"
	"github.com/pgnest-project/pgnest/pkg/color"
	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/model"
)

var downRemoveData bool

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the running cluster",
	Long: `Stop the cluster previously started with 'pgnest up'.

With --remove-data the data directory is deleted after a clean stop;
temporary clusters remove their data regardless.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fmtErr("cannot get current directory: %v", err)
			os.Exit(1)
		}
		st, exists := loadState(cwd)
		if !exists {
			fmtErr("no cluster is up here")
			os.Exit(1)
		}

		boot := requireBootstrap()
		boot.Settings = st.Settings

		orch := worker.New(boot)
		ctx, cancel := context.WithTimeout(context.Background(), boot.ShutdownTimeout)
		defer cancel()
		if err := orch.Run(ctx, model.OpStop, nil); err != nil {
			fmtErr("stop cluster: %v", err)
			os.Exit(1)
		}

		if downRemoveData || st.Settings.Temporary {
			if _, err := fsutil.RemoveTree(st.Settings.DataDir); err != nil {
				fmtErr("remove data directory: %v", err)
				os.Exit(1)
			}
		}
		clearState(cwd)

		if !jsonOutput {
			fmt.Println(color.Green("Cluster stopped."))
		}
	},
}

func init() {
	downCmd.Flags().BoolVar(&downRemoveData, "remove-data", false, "delete the data directory after stopping")
	rootCmd.AddCommand(downCmd)
}
