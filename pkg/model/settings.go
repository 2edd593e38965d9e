package model

import "time"

// Settings is the engine-independent description of a cluster: what
// version to install, where, and how to connect to it.
type Settings struct {
	// Version is the requested PostgreSQL version requirement,
	// e.g. "16.4" or "=16".
	Version string

	Host     string
	Port     uint16
	Username string
	Password string
	Database string

	// DataDir holds the cluster data; InstallationDir holds the
	// unpacked binaries.
	DataDir         string
	InstallationDir string

	// Temporary marks the data directory as throwaway; it is removed
	// when the cluster guard closes.
	Temporary bool

	// Timeout bounds engine start; zero means the engine default.
	Timeout time.Duration

	// Configuration carries arbitrary server parameters passed through
	// to the engine (shared_buffers, fsync, ...).
	Configuration map[string]string

	// TrustInstallationDir skips cache validation of an explicitly
	// provided installation directory.
	TrustInstallationDir bool
}

// Clone returns a deep copy; the configuration map is not shared.
func (s Settings) Clone() Settings {
	out := s
	if s.Configuration != nil {
		out.Configuration = make(map[string]string, len(s.Configuration))
		for k, v := range s.Configuration {
			out.Configuration[k] = v
		}
	}
	return out
}
