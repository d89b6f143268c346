// Package manifest opens sets of dynamic libraries described in a TOML
// file. A manifest maps logical names to per-platform library paths so a
// program can bind its native dependencies in one place:
//
//	[libraries.compress]
//	lazy = true
//	[libraries.compress.path]
//	linux = "libz.so.1"
//	darwin = "/usr/lib/libz.dylib"
//	windows = "zlib1.dll"
package manifest

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/amikos-tech/pure-dylib/dylib"
)

// Manifest is the parsed form of a manifest file.
type Manifest struct {
	Libraries map[string]LibrarySpec `toml:"libraries"`
}

// LibrarySpec describes one library entry.
type LibrarySpec struct {
	// Path maps a GOOS value to the library path used on that platform.
	Path map[string]string `toml:"path"`
	// Lazy defers the OS load of this entry until its first use.
	Lazy bool `toml:"lazy"`
}

// Parse decodes manifest TOML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: failed to parse: %w", err)
	}
	if len(m.Libraries) == 0 {
		return nil, fmt.Errorf("manifest: no libraries declared")
	}
	for name, spec := range m.Libraries {
		if len(spec.Path) == 0 {
			return nil, fmt.Errorf("manifest: library %q declares no paths", name)
		}
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to read %q: %w", path, err)
	}
	return Parse(data)
}

// PathFor returns the path a library entry uses on the current platform.
func (m *Manifest) PathFor(name string) (string, error) {
	return m.pathFor(name, runtime.GOOS)
}

func (m *Manifest) pathFor(name, goos string) (string, error) {
	spec, ok := m.Libraries[name]
	if !ok {
		return "", fmt.Errorf("manifest: unknown library %q", name)
	}
	path, ok := spec.Path[goos]
	if !ok {
		return "", fmt.Errorf("manifest: library %q has no path for %s", name, goos)
	}
	return path, nil
}

// Open opens every library in the manifest on the current platform. On
// failure the libraries opened so far are closed and the error reports
// which entry failed.
func (m *Manifest) Open() (*Set, error) {
	return m.open(runtime.GOOS)
}

func (m *Manifest) open(goos string) (*Set, error) {
	// Deterministic open order so a failing manifest fails the same way
	// every run.
	names := make([]string, 0, len(m.Libraries))
	for name := range m.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)

	set := &Set{libraries: make(map[string]*dylib.Library, len(names))}
	for _, name := range names {
		path, err := m.pathFor(name, goos)
		if err != nil {
			_ = set.Close()
			return nil, err
		}

		var opts []dylib.Option
		if m.Libraries[name].Lazy {
			opts = append(opts, dylib.WithLazyLoad())
		}
		lib, err := dylib.Open(path, opts...)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("manifest: failed to open library %q: %w", name, err)
		}
		set.libraries[name] = lib
	}
	return set, nil
}

// Set holds the opened libraries of one manifest.
type Set struct {
	libraries map[string]*dylib.Library
}

// Library returns the handle for a logical name, or nil if the manifest
// did not declare it.
func (s *Set) Library(name string) *dylib.Library {
	return s.libraries[name]
}

// Names returns the declared logical names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.libraries))
	for name := range s.libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every library in the set. Errors are joined; closing an
// already-closed set is a no-op.
func (s *Set) Close() error {
	var errs []error
	for name, lib := range s.libraries {
		if err := lib.Close(); err != nil {
			errs = append(errs, fmt.Errorf("manifest: failed to close library %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
