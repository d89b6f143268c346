// Package dylib loads platform-native dynamic libraries and resolves their
// exported symbols at runtime without cgo. It wraps LoadLibrary/GetProcAddress
// on Windows and dlopen/dlsym elsewhere behind one contract.
package dylib

import (
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// Test seam: swapped out by lifecycle tests so loads and unloads can be
// observed without a real shared object on disk.
var (
	osOpenLibrary  = openLibrary
	osLookupSymbol = lookupSymbol
	osCloseLibrary = closeLibrary
)

// Library is a handle to one dynamic library. It exclusively owns the
// underlying OS handle and releases it exactly once, either on Close or
// when the Library becomes unreachable.
//
// A Library must be used through a single pointer; copying the value is not
// supported. Methods are safe for concurrent use, except that Close racing
// a Resolve on the same handle is the caller's responsibility to avoid.
type Library struct {
	path string
	lazy bool

	mu     sync.Mutex
	handle uintptr
	closed bool
}

// Option configures Open.
type Option func(*openConfig) error

type openConfig struct {
	lazy bool
}

// WithLazyLoad defers the OS load until the first symbol resolution or
// explicit EnsureLoaded call. By default Open loads immediately.
func WithLazyLoad() Option {
	return func(cfg *openConfig) error {
		cfg.lazy = true
		return nil
	}
}

// Open creates a handle for the library at path. The path is handed to the
// OS loader verbatim; its search rules apply unchanged. Unless WithLazyLoad
// is given, the library is loaded before Open returns and a failure is
// reported as *LoadError.
func Open(path string, opts ...Option) (*Library, error) {
	var cfg openConfig
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	lib := &Library{path: path, lazy: cfg.lazy}
	if !cfg.lazy {
		if err := lib.EnsureLoaded(); err != nil {
			return nil, err
		}
	}

	// Safety net in case Close is never called.
	runtime.SetFinalizer(lib, func(l *Library) {
		_ = l.Close()
	})
	return lib, nil
}

// Path returns the path the handle was opened with.
func (l *Library) Path() string { return l.path }

// EnsureLoaded guarantees the library is loaded on a nil return. Concurrent
// callers observe a single OS load: the open primitive runs at most once per
// successful load. A failed attempt leaves the handle unloaded and is
// retried by the next call.
func (l *Library) EnsureLoaded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureLoadedLocked()
}

func (l *Library) ensureLoadedLocked() error {
	if l.closed {
		return ErrClosed
	}
	if l.handle != 0 {
		return nil
	}
	handle, err := osOpenLibrary(l.path)
	if err != nil {
		return &LoadError{Path: l.path, Err: err}
	}
	l.handle = handle
	return nil
}

// IsLoaded reports whether the library is currently loaded. It never
// triggers a load.
func (l *Library) IsLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != 0
}

// NativeHandle returns the raw OS handle (HMODULE on Windows, the dlopen
// handle elsewhere) for advanced interop, or 0 when the library is not
// loaded.
func (l *Library) NativeHandle() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

// Resolve looks up an exported symbol by its exact name and returns its
// address. No name decoration or demangling is applied. A lazy library is
// loaded on first use. A failed lookup is reported as *SymbolError and
// leaves the library loaded.
func (l *Library) Resolve(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(); err != nil {
		return 0, err
	}
	addr, err := osLookupSymbol(l.handle, name)
	if err != nil {
		return 0, &SymbolError{Name: name, Err: err}
	}
	if addr == 0 {
		return 0, &SymbolError{Name: name}
	}
	return addr, nil
}

// Register resolves name and binds it to fnptr, which must be a pointer to
// a function variable of the symbol's C signature. Calling the bound
// function with arguments the library does not expect is undefined, exactly
// as with any native symbol resolution.
func (l *Library) Register(name string, fnptr any) error {
	addr, err := l.Resolve(name)
	if err != nil {
		return err
	}
	purego.RegisterFunc(fnptr, addr)
	return nil
}

// Binding pairs an export name with a pointer to the function variable to
// populate. It carries no lifecycle of its own; it exists so a call site
// can assemble a RegisterBatch argument list in one expression.
type Binding struct {
	Name string
	Func any
}

// Bind constructs a Binding for RegisterBatch.
func Bind(name string, fnptr any) Binding {
	return Binding{Name: name, Func: fnptr}
}

// RegisterBatch resolves each binding in order, stopping at the first name
// that fails to resolve. Bindings before the failure are already populated
// when RegisterBatch returns; bindings after it are untouched.
func (l *Library) RegisterBatch(bindings ...Binding) error {
	for _, b := range bindings {
		if err := l.Register(b.Name, b.Func); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the OS handle if the library is loaded. It is idempotent:
// closing an unloaded or already-closed handle is a no-op. After Close the
// handle is terminal; subsequent operations return ErrClosed.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	runtime.SetFinalizer(l, nil)
	if l.handle == 0 {
		return nil
	}
	handle := l.handle
	l.handle = 0
	return osCloseLibrary(handle)
}
