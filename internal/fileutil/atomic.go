// Project: Latent Health Discretization and Filtration

// Package fileutil writes output files all at once.
package fileutil

import (
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// FileMode is the permission of every output file, before the umask.
const FileMode os.FileMode = 0o644

// AtomicWrite streams content into a pending file and replaces path with it
// only when write succeeds. On failure path is untouched.
func AtomicWrite(path string, write func(io.Writer) error) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(FileMode))
	if err != nil {
		return fmt.Errorf("create pending file for %s: %w", path, err)
	}
	defer pf.Cleanup()

	if err := write(pf); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
