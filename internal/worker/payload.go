// Package worker implements the privilege-separated lifecycle
// protocol: a serialisable payload describing what operation to run
// with which settings and environment overrides, and the orchestrator
// that dispatches it in-process or to a privilege-dropped subprocess.
package worker

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/jsonutil"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// SettingsSnapshot is the serialisable mirror of model.Settings
// consumed by the worker binary. Field names form the wire format.
type SettingsSnapshot struct {
	Version              string            `json:"version"`
	Host                 string            `json:"host"`
	Port                 uint16            `json:"port"`
	Username             string            `json:"username"`
	Password             string            `json:"password"`
	Database             string            `json:"database"`
	DataDir              string            `json:"data_dir"`
	InstallationDir      string            `json:"installation_dir"`
	Temporary            bool              `json:"temporary"`
	TimeoutSecs          *uint64           `json:"timeout_secs"`
	Configuration        map[string]string `json:"configuration"`
	TrustInstallationDir bool              `json:"trust_installation_dir"`
}

// Snapshot copies s into its wire representation.
func Snapshot(s model.Settings) SettingsSnapshot {
	snap := SettingsSnapshot{
		Version:              s.Version,
		Host:                 s.Host,
		Port:                 s.Port,
		Username:             s.Username,
		Password:             s.Password,
		Database:             s.Database,
		DataDir:              s.DataDir,
		InstallationDir:      s.InstallationDir,
		Temporary:            s.Temporary,
		Configuration:        s.Configuration,
		TrustInstallationDir: s.TrustInstallationDir,
	}
	if s.Timeout > 0 {
		secs := uint64(s.Timeout / time.Second)
		snap.TimeoutSecs = &secs
	}
	return snap
}

// IntoSettings converts the snapshot back into engine settings. The
// round trip through Snapshot preserves every field.
func (s SettingsSnapshot) IntoSettings() model.Settings {
	out := model.Settings{
		Version:              s.Version,
		Host:                 s.Host,
		Port:                 s.Port,
		Username:             s.Username,
		Password:             s.Password,
		Database:             s.Database,
		DataDir:              s.DataDir,
		InstallationDir:      s.InstallationDir,
		Temporary:            s.Temporary,
		Configuration:        s.Configuration,
		TrustInstallationDir: s.TrustInstallationDir,
	}
	if s.TimeoutSecs != nil {
		out.Timeout = time.Duration(*s.TimeoutSecs) * time.Second
	}
	return out
}

// Payload is one worker invocation: settings plus environment
// overrides. Default formatting redacts every override value.
type Payload struct {
	Environment []model.EnvVar
	Settings    SettingsSnapshot
}

// wirePayload is the JSON document written to the config file.
type wirePayload struct {
	Environment map[string]*string `json:"environment"`
	Settings    SettingsSnapshot   `json:"settings"`
}

// Encode serialises the payload to canonical JSON bytes. This is the
// one place override plaintext leaves the Secret wrapper on the
// producing side; the bytes land in a 0600 config file.
func (p *Payload) Encode() ([]byte, error) {
	env := make(map[string]*string, len(p.Environment))
	for _, v := range p.Environment {
		if _, dup := env[v.Name]; dup {
			continue
		}
		if value, ok := v.Value.Expose(); ok {
			val := value
			env[v.Name] = &val
		} else {
			env[v.Name] = nil
		}
	}
	return jsonutil.CanonicalMarshal(wirePayload{Environment: env, Settings: p.Settings})
}

// Decode parses a payload document. Malformed JSON is a config parse
// error, never a panic.
func Decode(data []byte) (*Payload, error) {
	var wire wirePayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return nil, errclass.ErrConfigParse.Wrap(err, "worker payload")
	}

	p := &Payload{Settings: wire.Settings}
	names := make([]string, 0, len(wire.Environment))
	for name := range wire.Environment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if value := wire.Environment[name]; value != nil {
			p.Environment = append(p.Environment, model.Set(name, *value))
		} else {
			p.Environment = append(p.Environment, model.Unset(name))
		}
	}
	return p, nil
}

// String renders the payload with every override value redacted.
func (p *Payload) String() string {
	var b strings.Builder
	b.WriteString("payload{env:[")
	for i, v := range p.Environment {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(v.String())
	}
	b.WriteString("] version:")
	b.WriteString(p.Settings.Version)
	b.WriteString(" data_dir:")
	b.WriteString(p.Settings.DataDir)
	b.WriteString("}")
	return b.String()
}
