// Package sandbox confines filesystem access to a single workspace
// directory. Every caller-supplied path is canonicalized and checked for
// containment before any operation touches the disk, so relative traversal
// and symlinks cannot reach outside the workspace root.
package sandbox

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	workshop "github.com/nevindra/workshop"
)

// Sandbox is a workspace root with confined file operations. The root is
// realpath-resolved at open time so containment checks compare canonical
// paths on both sides.
type Sandbox struct {
	root string
}

// Open creates dir if missing and returns a Sandbox rooted at its canonical
// absolute path.
func Open(dir string) (*Sandbox, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, workshop.Errorf(workshop.KindInvalidInput, "workspace root must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, workshop.WrapError(workshop.KindIO, err, "resolve workspace root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, workshop.WrapError(workshop.KindIO, err, "create workspace root")
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, workshop.WrapError(workshop.KindIO, err, "canonicalize workspace root")
	}
	return &Sandbox{root: real}, nil
}

// Root returns the canonical absolute workspace directory.
func (s *Sandbox) Root() string { return s.root }

// Resolved is a confined path in both host and workspace form. Abs is the
// canonical absolute path on disk; Rel is the forward-slash path relative to
// the root ("." for the root itself).
type Resolved struct {
	Abs string
	Rel string
}

// Resolve canonicalizes input against the workspace root and verifies the
// result stays inside it. Empty, absolute, drive-qualified and UNC inputs
// are rejected up front on every platform; symlink escapes are caught after
// canonicalization.
func (s *Sandbox) Resolve(input string) (Resolved, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Resolved{}, workshop.Errorf(workshop.KindInvalidInput, "path must not be empty")
	}
	if strings.HasPrefix(trimmed, "/") || filepath.IsAbs(trimmed) {
		return Resolved{}, workshop.Errorf(workshop.KindInvalidInput, "absolute paths are not allowed: %s", trimmed)
	}
	if len(trimmed) >= 2 && trimmed[1] == ':' && isASCIILetter(trimmed[0]) {
		return Resolved{}, workshop.Errorf(workshop.KindInvalidInput, "drive-qualified paths are not allowed: %s", trimmed)
	}
	if strings.HasPrefix(trimmed, `\\`) {
		return Resolved{}, workshop.Errorf(workshop.KindInvalidInput, "UNC paths are not allowed: %s", trimmed)
	}

	joined := filepath.Join(s.root, filepath.FromSlash(trimmed))
	real, err := realpathDeepest(joined)
	if err != nil {
		return Resolved{}, workshop.WrapError(workshop.KindIO, err, "canonicalize "+trimmed)
	}

	rel, err := filepath.Rel(s.root, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Resolved{}, workshop.Errorf(workshop.KindEscape, "path escapes workspace: %s", trimmed)
	}
	return Resolved{Abs: real, Rel: filepath.ToSlash(rel)}, nil
}

// realpathDeepest resolves symlinks in the deepest existing ancestor of p
// and rejoins the missing suffix. A new file inside an existing directory
// canonicalizes to that directory's real path plus the file name, so the
// containment check still sees where the write would actually land.
func realpathDeepest(p string) (string, error) {
	suffix := ""
	cur := p
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(real, suffix), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			// cur is a symlink whose target does not exist; refuse to
			// guess where a write through it would land.
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		cur = parent
	}
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
