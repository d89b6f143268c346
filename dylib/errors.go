package dylib

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a Library after Close.
// A closed handle cannot be reloaded; open a new one instead.
var ErrClosed = errors.New("dylib: library is closed")

// LoadError reports that the OS loader failed to open a library.
// The handle stays unloaded and the next EnsureLoaded retries.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dylib: failed to load library %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SymbolError reports that an exported symbol could not be resolved.
// It is not fatal to the handle: other symbols may still resolve.
type SymbolError struct {
	Name string
	Err  error
}

func (e *SymbolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dylib: symbol %q not found: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("dylib: symbol %q not found", e.Name)
}

func (e *SymbolError) Unwrap() error { return e.Err }
