package vcs

import (
	"crypto/sha1" //nolint:gosec // object ids mirror git's SHA-1 naming.
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrUnknownCommit is returned by MemoryRepository for commit ids it never stored.
var ErrUnknownCommit = errors.New("unknown commit")

type memCommit struct {
	tree      Hash
	parent    Hash
	hasParent bool
	when      time.Time
}

// MemoryRepository is an in-process object store implementing Repository.
// It is used for fixtures and tests; every handle returned by Opener shares
// the same objects.
type MemoryRepository struct {
	mu      sync.RWMutex
	trees   map[Hash][]TreeEntry
	blobs   map[Hash]struct{}
	commits map[Hash]memCommit
	head    Hash
}

// NewMemoryRepository creates an empty repository without commits.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		trees:   make(map[Hash][]TreeEntry),
		blobs:   make(map[Hash]struct{}),
		commits: make(map[Hash]memCommit),
	}
}

func objectHash(kind string, payload []byte) Hash {
	hasher := sha1.New() //nolint:gosec // see import.
	fmt.Fprintf(hasher, "%s %d\x00", kind, len(payload))
	hasher.Write(payload)

	var h Hash
	copy(h[:], hasher.Sum(nil))

	return h
}

// Blob stores file content and returns its id.
func (m *MemoryRepository) Blob(content string) Hash {
	hash := objectHash("blob", []byte(content))

	m.mu.Lock()
	m.blobs[hash] = struct{}{}
	m.mu.Unlock()

	return hash
}

// Tree stores a tree with the given entries and returns its id.
func (m *MemoryRepository) Tree(entries ...TreeEntry) Hash {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b TreeEntry) int { return strings.Compare(a.Name, b.Name) })

	var payload strings.Builder
	for _, entry := range sorted {
		fmt.Fprintf(&payload, "%d %s %s\n", entry.Kind, entry.Name, entry.Hash)
	}

	hash := objectHash("tree", []byte(payload.String()))

	m.mu.Lock()
	m.trees[hash] = sorted
	m.mu.Unlock()

	return hash
}

// TreeFromPaths builds nested trees from slash-separated file paths mapped to
// their content and returns the root tree id.
func (m *MemoryRepository) TreeFromPaths(files map[string]string) Hash {
	direct := make(map[string]string)
	nested := make(map[string]map[string]string)

	for path, content := range files {
		head, rest, found := strings.Cut(path, "/")
		if !found {
			direct[head] = content

			continue
		}

		if nested[head] == nil {
			nested[head] = make(map[string]string)
		}

		nested[head][rest] = content
	}

	entries := make([]TreeEntry, 0, len(direct)+len(nested))

	for name, content := range direct {
		entries = append(entries, TreeEntry{Name: name, Kind: KindFile, Hash: m.Blob(content)})
	}

	for name, children := range nested {
		entries = append(entries, TreeEntry{Name: name, Kind: KindDirectory, Hash: m.TreeFromPaths(children)})
	}

	return m.Tree(entries...)
}

// Commit records a commit of tree on top of the current HEAD and moves HEAD to it.
func (m *MemoryRepository) Commit(tree Hash, when time.Time) Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	commit := memCommit{tree: tree, parent: m.head, hasParent: !m.head.IsZero(), when: when}
	payload := fmt.Sprintf("tree %s\nparent %s\ntime %d\n", tree, m.head, when.UnixNano())
	hash := objectHash("commit", []byte(payload))

	m.commits[hash] = commit
	m.head = hash

	return hash
}

// Opener returns an Opener whose handles all read this repository.
func (m *MemoryRepository) Opener() Opener {
	return func() (Repository, error) {
		return m, nil
	}
}

// Head returns the current HEAD commit.
func (m *MemoryRepository) Head() (Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.head.IsZero() {
		return Hash{}, ErrNoHead
	}

	return m.head, nil
}

func (m *MemoryRepository) commit(hash Hash) (memCommit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	commit, ok := m.commits[hash]
	if !ok {
		return memCommit{}, fmt.Errorf("%w: %s", ErrUnknownCommit, hash)
	}

	return commit, nil
}

// FirstParent returns the parent of commit.
func (m *MemoryRepository) FirstParent(hash Hash) (Hash, bool, error) {
	commit, err := m.commit(hash)
	if err != nil {
		return Hash{}, false, err
	}

	return commit.parent, commit.hasParent, nil
}

// CommitTime returns the commit timestamp.
func (m *MemoryRepository) CommitTime(hash Hash) (time.Time, error) {
	commit, err := m.commit(hash)
	if err != nil {
		return time.Time{}, err
	}

	return commit.when, nil
}

// CommitTree returns the root tree of commit.
func (m *MemoryRepository) CommitTree(hash Hash) (Hash, error) {
	commit, err := m.commit(hash)
	if err != nil {
		return Hash{}, err
	}

	return commit.tree, nil
}

// TreeEntries returns the entries of tree.
func (m *MemoryRepository) TreeEntries(tree Hash) ([]TreeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, ok := m.trees[tree]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, tree)
	}

	return slices.Clone(entries), nil
}

// ResolvePath descends segments from tree.
func (m *MemoryRepository) ResolvePath(tree Hash, segments []string) (Hash, error) {
	current := tree

	for idx, segment := range segments {
		entries, err := m.TreeEntries(current)
		if err != nil {
			return Hash{}, err
		}

		pos, found := slices.BinarySearchFunc(entries, segment, func(e TreeEntry, name string) int {
			return strings.Compare(e.Name, name)
		})
		if !found {
			return Hash{}, fmt.Errorf("%w: %s", ErrPathNotFound, strings.Join(segments[:idx+1], "/"))
		}

		if entries[pos].Kind != KindDirectory {
			return Hash{}, fmt.Errorf("%w: %s", ErrNotADirectory, strings.Join(segments[:idx+1], "/"))
		}

		current = entries[pos].Hash
	}

	return current, nil
}

// DiffChangedFileCount counts added, deleted and modified files between two
// trees. A file replaced by a directory counts as one deletion plus one
// addition per file beneath the directory.
func (m *MemoryRepository) DiffChangedFileCount(oldTree, newTree Hash) (int, error) {
	if oldTree == newTree {
		return 0, nil
	}

	oldEntries, err := m.TreeEntries(oldTree)
	if err != nil {
		return 0, err
	}

	newEntries, err := m.TreeEntries(newTree)
	if err != nil {
		return 0, err
	}

	byName := make(map[string]TreeEntry, len(newEntries))
	for _, entry := range newEntries {
		byName[entry.Name] = entry
	}

	changed := 0

	for _, before := range oldEntries {
		after, ok := byName[before.Name]
		delete(byName, before.Name)

		var count int

		switch {
		case !ok:
			count, err = m.sideCount(before)
		case before.Hash == after.Hash:
			continue
		case before.Kind == KindDirectory && after.Kind == KindDirectory:
			count, err = m.DiffChangedFileCount(before.Hash, after.Hash)
		case before.Kind == KindFile && after.Kind == KindFile:
			count = 1
		default:
			count, err = m.typeChangeCount(before, after)
		}

		if err != nil {
			return 0, err
		}

		changed += count
	}

	for _, added := range byName {
		count, countErr := m.sideCount(added)
		if countErr != nil {
			return 0, countErr
		}

		changed += count
	}

	return changed, nil
}

func (m *MemoryRepository) typeChangeCount(before, after TreeEntry) (int, error) {
	oldCount, err := m.sideCount(before)
	if err != nil {
		return 0, err
	}

	newCount, err := m.sideCount(after)
	if err != nil {
		return 0, err
	}

	return oldCount + newCount, nil
}

// sideCount counts the files an entry contributes when it exists on one side only.
func (m *MemoryRepository) sideCount(entry TreeEntry) (int, error) {
	if entry.Kind == KindFile {
		return 1, nil
	}

	entries, err := m.TreeEntries(entry.Hash)
	if err != nil {
		return 0, err
	}

	total := 0

	for _, child := range entries {
		count, countErr := m.sideCount(child)
		if countErr != nil {
			return 0, countErr
		}

		total += count
	}

	return total, nil
}

// Close is a no-op; the objects live as long as the repository value.
func (m *MemoryRepository) Close() {}
