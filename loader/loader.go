// Package loader reads a linked executable image from disk and places it
// into a simulator's memory: a single flat copy since the object format
// (spec §6.3) has no segments or permissions to set up, and execution
// always begins at word 0 of the image (the entry symbol is bookkeeping for
// tools, not a simulator start address).
package loader

import (
	"fmt"
	"os"

	"github.com/msedwar/m20/vm"
)

// LoadFile reads the executable image at path and loads it into machine's
// memory starting at address 0.
func LoadFile(machine *vm.VM, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied image path
	if err != nil {
		return fmt.Errorf("failed to read image %q: %w", path, err)
	}

	if err := machine.LoadImage(data); err != nil {
		return fmt.Errorf("failed to load image %q: %w", path, err)
	}

	return nil
}
