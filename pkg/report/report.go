// Package report turns churn results into output: per-file counts from a
// churn tree, or the single total produced by the reducer.
package report

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/Sumatoshi-tech/treechurn/pkg/churn"
)

// ErrNotDirectory is returned when traversal starts at a file node.
var ErrNotDirectory = errors.New("report root is not a directory")

// FileChurn is the change count of one tracked file.
type FileChurn struct {
	Path    string `json:"path"    yaml:"path"`
	Changes int    `json:"changes" yaml:"changes"`
}

// Walk calls fn for every file under root, children in lexicographic order,
// with paths relative to root joined by "/". It stops at the first error fn returns.
func Walk(root churn.Node, fn func(FileChurn) error) error {
	dir, ok := root.(*churn.Dir)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotDirectory, root)
	}

	return walkDir(dir, nil, fn)
}

func walkDir(dir *churn.Dir, prefix []string, fn func(FileChurn) error) error {
	for _, name := range slices.Sorted(maps.Keys(dir.Children)) {
		path := append(prefix, name)

		switch child := dir.Children[name].(type) {
		case *churn.File:
			err := fn(FileChurn{Path: strings.Join(path, "/"), Changes: child.Changes})
			if err != nil {
				return err
			}
		case *churn.Dir:
			err := walkDir(child, slices.Clip(path), fn)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Collect gathers Walk's output into a slice.
func Collect(root churn.Node) ([]FileChurn, error) {
	var files []FileChurn

	err := Walk(root, func(file FileChurn) error {
		files = append(files, file)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Total sums the change counts of files.
func Total(files []FileChurn) int {
	return lo.SumBy(files, func(file FileChurn) int { return file.Changes })
}

// Changed drops files that never changed.
func Changed(files []FileChurn) []FileChurn {
	return lo.Filter(files, func(file FileChurn, _ int) bool { return file.Changes > 0 })
}
