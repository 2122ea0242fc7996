package gitlib

import (
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/treechurn/pkg/safeconv"
	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
}

// CommittedAt returns the committer timestamp.
func (c *Commit) CommittedAt() time.Time {
	return c.commit.Committer().When
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return safeconv.MustUintToInt(c.commit.ParentCount())
}

// ParentHash returns the hash of the nth parent.
func (c *Commit) ParentHash(n int) vcs.Hash {
	return HashFromOid(c.commit.ParentId(safeconv.MustIntToUint(n)))
}

// TreeHash returns the root tree id without loading the tree.
func (c *Commit) TreeHash() vcs.Hash {
	return HashFromOid(c.commit.TreeId())
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}
