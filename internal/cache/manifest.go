package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/jsonutil"
)

const manifestFile = "manifest.json"

// Manifest records the checksums of an installation's binaries so a
// cached entry corrupted on disk is detected before reuse.
type Manifest struct {
	Binaries map[string]string `json:"binaries"` // bin name -> sha256 hex
	Checksum string            `json:"checksum"` // checksum of the Binaries map
}

// WriteManifest hashes the required binaries under dir and writes the
// manifest next to them.
func WriteManifest(dir string) error {
	m := &Manifest{Binaries: make(map[string]string, len(requiredBinaries))}
	for _, bin := range requiredBinaries {
		sum, err := fileChecksum(filepath.Join(dir, "bin", bin))
		if err != nil {
			return fmt.Errorf("hash %s: %w", bin, err)
		}
		m.Binaries[bin] = sum
	}

	var err error
	m.Checksum, err = manifestChecksum(m)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return fsutil.AtomicWrite(filepath.Join(dir, manifestFile), data, 0o644)
}

// VerifyManifest re-hashes the binaries under dir against the stored
// manifest. A missing manifest is not an error; entries populated by
// older versions simply go unverified.
func VerifyManifest(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	want, err := manifestChecksum(&m)
	if err != nil {
		return err
	}
	if want != m.Checksum {
		return fmt.Errorf("manifest checksum mismatch in %s", dir)
	}

	for bin, sum := range m.Binaries {
		got, err := fileChecksum(filepath.Join(dir, "bin", bin))
		if err != nil {
			return fmt.Errorf("hash %s: %w", bin, err)
		}
		if got != sum {
			return fmt.Errorf("binary %s does not match its manifest checksum", bin)
		}
	}
	return nil
}

// manifestChecksum covers the Binaries map only; the Checksum field
// itself is excluded.
func manifestChecksum(m *Manifest) (string, error) {
	data, err := jsonutil.CanonicalMarshal(m.Binaries)
	if err != nil {
		return "", fmt.Errorf("canonical marshal manifest: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
