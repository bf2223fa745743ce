package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MirrorSink keeps a secondary local-disk copy of uploaded objects for
// redundancy and debugging. It is an optional sink: the primary blob store
// is the source of truth and mirror failures must never fail an upload.
//
// Files are written to a temp path first and renamed into place on commit,
// so a mirror file either fully exists or not at all.
type MirrorSink struct {
	dir string
}

// NewMirrorSink creates the mirror directory if needed.
func NewMirrorSink(dir string) (*MirrorSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("mirror directory is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror directory: %w", err)
	}
	return &MirrorSink{dir: dir}, nil
}

// Create opens a new mirror file for the given stored filename.
func (s *MirrorSink) Create(filename string) (*MirrorFile, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return nil, fmt.Errorf("invalid mirror filename %q", filename)
	}
	tmp := filepath.Join(s.dir, "."+uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create mirror temp file: %w", err)
	}
	return &MirrorFile{
		f:     f,
		tmp:   tmp,
		final: filepath.Join(s.dir, filename),
	}, nil
}

// MirrorFile is a writable mirror copy pending commit.
type MirrorFile struct {
	f     *os.File
	tmp   string
	final string
	done  bool
}

func (m *MirrorFile) Write(p []byte) (int, error) {
	return m.f.Write(p)
}

// Commit closes the temp file and atomically moves it to its final path.
// Returns the final path.
func (m *MirrorFile) Commit() (string, error) {
	if m.done {
		return "", fmt.Errorf("mirror file already finished")
	}
	m.done = true
	if err := m.f.Close(); err != nil {
		_ = os.Remove(m.tmp)
		return "", fmt.Errorf("close mirror temp file: %w", err)
	}
	if err := os.Rename(m.tmp, m.final); err != nil {
		_ = os.Remove(m.tmp)
		return "", fmt.Errorf("commit mirror file: %w", err)
	}
	return m.final, nil
}

// Discard drops the temp file. Safe to call after a failed Commit.
func (m *MirrorFile) Discard() {
	if m.done {
		return
	}
	m.done = true
	_ = m.f.Close()
	_ = os.Remove(m.tmp)
}
