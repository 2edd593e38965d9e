package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// ResolveInstallDir locates the directory actually holding the
// installed binaries under root. Downloads may unpack into a
// version-named subdirectory, so when root itself has no bin folder
// the immediate subdirectories are scanned: each candidate's name must
// start with a numeric version token, and the highest version wins by
// three-component numeric comparison. Malformed names are skipped.
func ResolveInstallDir(root string) (string, error) {
	if hasBin(root) {
		return root, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("resolve installation dir: %w", err)
	}

	var bestDir string
	var best *goversion.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if !hasBin(dir) {
			continue
		}
		v, err := goversion.NewVersion(leadingVersionToken(e.Name()))
		if err != nil {
			continue
		}
		if best == nil || best.LessThan(v) {
			best = v
			bestDir = dir
		}
	}

	if bestDir == "" {
		return "", fmt.Errorf("resolve installation dir: no versioned bin directory under %s", root)
	}
	return bestDir, nil
}

func hasBin(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "bin"))
	return err == nil && info.IsDir()
}

// VersionFromDirName parses the version a download directory name
// encodes, e.g. "16.4.0-linux-amd64" yields "16.4.0". Names without a
// leading numeric version token report false.
func VersionFromDirName(name string) (string, bool) {
	v, err := goversion.NewVersion(leadingVersionToken(name))
	if err != nil {
		return "", false
	}
	return v.String(), true
}

// leadingVersionToken extracts the numeric version prefix of a
// directory name, e.g. "16.4.0-linux-amd64" yields "16.4.0".
func leadingVersionToken(name string) string {
	end := 0
	for end < len(name) && (name[end] == '.' || (name[end] >= '0' && name[end] <= '9')) {
		end++
	}
	return strings.TrimRight(name[:end], ".")
}
