//go:build !windows

package dylib

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// purego clears and re-reads dlerror around Dlsym, so a stale error from an
// earlier unrelated call is never attributed to this lookup.

func openLibrary(path string) (uintptr, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	if handle == 0 {
		return 0, fmt.Errorf("dlopen returned a nil handle for %s", path)
	}
	return handle, nil
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func closeLibrary(handle uintptr) error {
	if handle == 0 {
		return nil
	}
	return purego.Dlclose(handle)
}
