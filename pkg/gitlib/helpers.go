package gitlib

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// ErrRemoteNotSupported is returned when a remote repository URI is provided.
var ErrRemoteNotSupported = errors.New("remote repositories not supported")

var scpLikeURI = regexp.MustCompile(`^[A-Za-z]\w*@[A-Za-z0-9][\w.]*:`)

// CheckLocalURI rejects remote URIs and strips a trailing path separator.
func CheckLocalURI(uri string) (string, error) {
	if strings.Contains(uri, "://") || scpLikeURI.MatchString(uri) {
		return "", fmt.Errorf("%w: %s", ErrRemoteNotSupported, uri)
	}

	if len(uri) > 1 && uri[len(uri)-1] == os.PathSeparator {
		uri = uri[:len(uri)-1]
	}

	return uri, nil
}

// Opener returns a vcs.Opener that opens a fresh libgit2 handle on every call.
func Opener(path string) vcs.Opener {
	return func() (vcs.Repository, error) {
		repo, err := OpenRepository(path)
		if err != nil {
			return nil, err
		}

		return repo, nil
	}
}

func joinSegments(segments []string) string {
	return strings.Join(segments, "/")
}
