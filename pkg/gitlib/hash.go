// Package gitlib implements the vcs repository data source on top of libgit2.
package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// HashFromOid converts a libgit2 Oid to a vcs.Hash.
func HashFromOid(oid *git2go.Oid) vcs.Hash {
	var h vcs.Hash
	if oid == nil {
		return h
	}

	copy(h[:], oid[:])

	return h
}

// ToOid converts a vcs.Hash back to a libgit2 Oid.
func ToOid(h vcs.Hash) *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
