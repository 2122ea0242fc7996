package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// NumDeltas returns the number of file deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	numDeltas, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return numDeltas, nil
}

// ChangedFileCount counts deltas whose object id changed, skipping submodule
// links. Mode-only changes keep the same id and are not counted.
func (d *Diff) ChangedFileCount() (int, error) {
	numDeltas, err := d.NumDeltas()
	if err != nil {
		return 0, err
	}

	count := 0

	for idx := range numDeltas {
		delta, deltaErr := d.diff.Delta(idx)
		if deltaErr != nil {
			return 0, fmt.Errorf("get delta %d: %w", idx, deltaErr)
		}

		if isSubmodule(delta.OldFile) || isSubmodule(delta.NewFile) {
			continue
		}

		if delta.OldFile.Oid.Equal(delta.NewFile.Oid) {
			continue
		}

		count++
	}

	return count, nil
}

func isSubmodule(file git2go.DiffFile) bool {
	return git2go.Filemode(file.Mode) == git2go.FilemodeCommit
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	// The only failure is a double free, which the nil check rules out.
	_ = d.diff.Free()
	d.diff = nil
}
