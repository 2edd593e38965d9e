package cli

import (
	"fmt"
	"os"

	"github.com/pgnest-project/pgnest/pkg/color"
	"github.com/pgnest-project/pgnest/pkg/config"
)

// requireBootstrap loads pgnest.yaml from CWD (falling back to
// defaults when absent) and resolves it, or exits with error.
func requireBootstrap() *config.Bootstrap {
	cwd, err := os.Getwd()
	if err != nil {
		fmtErr("cannot get current directory: %v", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFile(cwd)
	if err != nil {
		fmtErr("load configuration: %v", err)
		os.Exit(1)
	}
	boot, err := config.Resolve(cfg)
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
	return boot
}

func fmtErr(format string, args ...any) {
	prefix := "pgnest: "
	if color.Enabled() {
		prefix = color.Red("pgnest:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
