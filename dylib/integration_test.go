package dylib

import (
	"errors"
	"runtime"
	"testing"
)

// systemCLibrary returns a path for the platform C runtime, the one library
// every test host is guaranteed to carry.
func systemCLibrary(t *testing.T) string {
	t.Helper()
	switch runtime.GOOS {
	case "linux":
		return "libc.so.6"
	case "darwin":
		return "/usr/lib/libSystem.B.dylib"
	case "windows":
		return "msvcrt.dll"
	default:
		t.Skipf("no known C runtime library path for %s", runtime.GOOS)
		return ""
	}
}

func openSystemCLibrary(t *testing.T, opts ...Option) *Library {
	t.Helper()
	lib, err := Open(systemCLibrary(t), opts...)
	if err != nil {
		t.Skipf("cannot load system C library: %v", err)
	}
	t.Cleanup(func() {
		_ = lib.Close()
	})
	return lib
}

func TestLazyResolveAndCall(t *testing.T) {
	lib := openSystemCLibrary(t, WithLazyLoad())
	if lib.IsLoaded() {
		t.Fatal("lazy handle must not be loaded before first use")
	}

	var strlen func(string) int
	if err := lib.Register("strlen", &strlen); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lib.IsLoaded() {
		t.Fatal("handle must be loaded after first resolution")
	}
	if got := strlen("hello"); got != 5 {
		t.Fatalf(`strlen("hello") = %d, want 5`, got)
	}
}

func TestRegisterBatchAgainstRealLibrary(t *testing.T) {
	lib := openSystemCLibrary(t)

	var (
		strlen func(string) int
		abs    func(int32) int32
	)
	err := lib.RegisterBatch(
		Bind("strlen", &strlen),
		Bind("abs", &abs),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strlen("dynamic"); got != 7 {
		t.Fatalf(`strlen("dynamic") = %d, want 7`, got)
	}
	if got := abs(-42); got != 42 {
		t.Fatalf("abs(-42) = %d, want 42", got)
	}
}

func TestResolveMissingSymbolAgainstRealLibrary(t *testing.T) {
	lib := openSystemCLibrary(t)

	_, err := lib.Resolve("pure_dylib_definitely_not_a_symbol")
	var symErr *SymbolError
	if !errors.As(err, &symErr) {
		t.Fatalf("error %v is not a *SymbolError", err)
	}
	if !lib.IsLoaded() {
		t.Fatal("a failed lookup must not unload the library")
	}
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := Open("/no/such/dir/libpure-dylib-missing.so")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error %v is not a *LoadError", err)
	}
}
