// pgnest-worker performs a single cluster operation described by a
// payload file and exits. The primary process launches it when
// privilege separation requires the engine to run under another uid,
// so the argument contract is deliberately rigid: exactly one
// operation and one config path.
package main

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/pgnest-project/pgnest/internal/worker"
	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/model"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pgnest-worker: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 2 {
		return errclass.ErrInvalidArguments.WithMessage(
			"usage: pgnest-worker <operation> <config-path>")
	}
	if len(args) > 2 {
		return errclass.ErrInvalidArguments.WithMessagef(
			"unexpected extra argument: %q", args[2])
	}

	op := model.Operation(args[0])
	configPath := args[1]
	if !utf8.ValidString(configPath) {
		return errclass.ErrInvalidArguments.WithMessage(
			"config path is not valid UTF-8")
	}

	return worker.Execute(op, configPath)
}
