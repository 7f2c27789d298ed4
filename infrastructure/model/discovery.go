package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lungscan-go/domain/diagnosis"
)

// DefaultManifestName is the manifest file looked up in each search directory.
const DefaultManifestName = "model.yaml"

// DefaultSearchDirs returns the directories searched for a model when none is
// configured: the working directory, the executable's directory and the
// user config directory, each also with a "models" subdirectory.
func DefaultSearchDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, "models"), cwd)
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		dirs = append(dirs, filepath.Join(dir, "models"), dir)
	}
	if cfgDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfgDir, "lungscan", "models"))
	}
	return dirs
}

// FindManifest returns configured if set and present, otherwise the first
// DefaultManifestName found in dirs.
func FindManifest(configured string, dirs []string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", diagnosis.NewModelLoadError("find", configured, err)
		}
		return filepath.Abs(configured)
	}

	searched := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		candidate := filepath.Join(dir, DefaultManifestName)
		searched = append(searched, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", diagnosis.NewModelLoadError("find", DefaultManifestName,
		fmt.Errorf("model not found, searched:\n  - %s", strings.Join(searched, "\n  - ")))
}
