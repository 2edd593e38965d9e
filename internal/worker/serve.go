package worker

import (
	"os"

	"github.com/pgnest-project/pgnest/internal/envscope"
	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/logging"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// Execute is the worker-binary side of the protocol: read the payload
// at configPath, apply its environment overrides as a scope, and
// perform op. Error messages never include override plaintext.
func Execute(op model.Operation, configPath string) error {
	if !op.Valid() {
		return errclass.ErrInvalidArguments.WithMessagef("unknown operation %q", string(op))
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return errclass.ErrConfigParse.Wrap(err, "read worker config")
	}
	payload, err := Decode(data)
	if err != nil {
		return err
	}
	logging.Debug("worker executing", map[string]any{
		"operation": string(op),
		"payload":   payload.String(),
	})

	guard, err := envscope.Apply(payload.Environment)
	if err != nil {
		return err
	}
	defer guard.Restore()

	if err := Perform(op, payload.Settings.IntoSettings()); err != nil {
		return wrapOperation(op, err)
	}
	return nil
}
