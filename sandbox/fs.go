package sandbox

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	workshop "github.com/nevindra/workshop"
)

// Entry describes one member of a listed directory.
type Entry struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
	Type         string `json:"type"`
	Size         int64  `json:"size,omitempty"`
}

// File is the content of a workspace file keyed by its relative path.
type File struct {
	RelativePath string `json:"relativePath"`
	Content      string `json:"content"`
}

// WriteResult reports a completed write.
type WriteResult struct {
	RelativePath string `json:"relativePath"`
	BytesWritten int    `json:"bytesWritten"`
}

// List returns the entries of one directory level inside the workspace.
func (s *Sandbox) List(input string) ([]Entry, error) {
	r, err := s.Resolve(input)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.Abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, workshop.Errorf(workshop.KindNotFound, "directory not found: %s", r.Rel)
		}
		return nil, workshop.WrapError(workshop.KindIO, err, "list "+r.Rel)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry := Entry{Name: e.Name(), RelativePath: path.Join(r.Rel, e.Name()), Type: "file"}
		if e.IsDir() {
			entry.Type = "dir"
		} else if info, ierr := e.Info(); ierr == nil {
			entry.Size = info.Size()
		}
		out = append(out, entry)
	}
	return out, nil
}

// Read returns the UTF-8 content of a workspace file.
func (s *Sandbox) Read(input string) (File, error) {
	r, err := s.Resolve(input)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(r.Abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return File{}, workshop.Errorf(workshop.KindNotFound, "file not found: %s", r.Rel)
		}
		return File{}, workshop.WrapError(workshop.KindIO, err, "read "+r.Rel)
	}
	return File{RelativePath: r.Rel, Content: string(data)}, nil
}

// Write stores content at the given path, creating missing ancestor
// directories. When overwrite is false an existing target fails with
// KindExists before anything is written.
func (s *Sandbox) Write(input, content string, overwrite bool) (WriteResult, error) {
	r, err := s.Resolve(input)
	if err != nil {
		return WriteResult{}, err
	}
	if !overwrite {
		if _, lerr := os.Lstat(r.Abs); lerr == nil {
			return WriteResult{}, workshop.Errorf(workshop.KindExists, "file already exists: %s", r.Rel)
		}
	}
	if err := os.MkdirAll(filepath.Dir(r.Abs), 0o755); err != nil {
		return WriteResult{}, workshop.WrapError(workshop.KindIO, err, "create parent directories for "+r.Rel)
	}
	if err := os.WriteFile(r.Abs, []byte(content), 0o644); err != nil {
		return WriteResult{}, workshop.WrapError(workshop.KindIO, err, "write "+r.Rel)
	}
	return WriteResult{RelativePath: r.Rel, BytesWritten: len(content)}, nil
}
