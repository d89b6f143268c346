package dylib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var errLibraryNotFound = errors.New("shared library not found")

// FileName maps a base library name onto the platform naming convention:
// "z" becomes "libz.so" on Linux, "libz.dylib" on macOS and "z.dll" on
// Windows. A name that already carries an extension passes through
// unchanged.
func FileName(name string) string {
	return fileNameFor(name, runtime.GOOS)
}

func fileNameFor(name, goos string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	switch goos {
	case "windows":
		return name + ".dll"
	case "darwin":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// LocateOption configures Locate.
type LocateOption func(*locateConfig) error

type locateConfig struct {
	envVar     string
	searchDirs []string
	goos       string
}

// WithSearchDirs appends directories to probe, in order.
func WithSearchDirs(dirs ...string) LocateOption {
	return func(cfg *locateConfig) error {
		for _, dir := range dirs {
			dir = strings.TrimSpace(dir)
			if dir == "" {
				return fmt.Errorf("search directory cannot be empty")
			}
			cfg.searchDirs = append(cfg.searchDirs, dir)
		}
		return nil
	}
}

// WithEnvOverride names an environment variable that, when set, supplies
// the full library path directly and short-circuits the search.
func WithEnvOverride(envVar string) LocateOption {
	return func(cfg *locateConfig) error {
		envVar = strings.TrimSpace(envVar)
		if envVar == "" {
			return fmt.Errorf("environment variable name cannot be empty")
		}
		cfg.envVar = envVar
		return nil
	}
}

// Locate resolves a base library name to an absolute file path by probing
// the configured search directories for the platform file name; on Windows
// the directories in %PATH% are probed as well. This is not discovery: the
// caller names the exact library, Locate only finds its file. The result is
// validated to be an existing, non-empty regular file.
func Locate(name string, opts ...LocateOption) (string, error) {
	cfg := locateConfig{goos: runtime.GOOS}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return "", err
		}
	}

	if cfg.envVar != "" {
		if override := strings.TrimSpace(os.Getenv(cfg.envVar)); override != "" {
			path, err := validateLibraryFile(override)
			if err != nil {
				return "", fmt.Errorf("dylib: %s points to an unusable library: %w", cfg.envVar, err)
			}
			return path, nil
		}
	}

	fileName := fileNameFor(name, cfg.goos)
	dirs := cfg.searchDirs
	if cfg.goos == "windows" {
		dirs = append(dirs, filepath.SplitList(os.Getenv("PATH"))...)
	}

	var invalid []error
	for _, dir := range dirs {
		candidate := filepath.Join(dir, fileName)
		path, err := validateLibraryFile(candidate)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			invalid = append(invalid, fmt.Errorf("%s: %w", candidate, err))
		}
	}

	if len(invalid) > 0 {
		return "", fmt.Errorf("dylib: found candidates for %q but none are usable: %w", name, errors.Join(invalid...))
	}
	return "", fmt.Errorf("dylib: %w: %q (searched %d directories)", errLibraryNotFound, fileName, len(dirs))
}

func validateLibraryFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("library path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("library path points to a directory: %q", absPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("library file is empty: %q", absPath)
	}

	return absPath, nil
}
