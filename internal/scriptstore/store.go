// Package scriptstore holds the generated scene script between the generate
// and render steps.
//
// The pipeline keeps at most one current script: every Put overwrites the
// previous one at the same path. Callers depend on the Store interface so a
// keyed, multi-slot store can replace FileStore if concurrent runs are ever
// needed.
package scriptstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoScript is returned by Latest before anything has been stored.
var ErrNoScript = errors.New("no script stored")

// Script is the current script and its on-disk location.
type Script struct {
	Path    string
	Content string
}

// Store persists the current script.
type Store interface {
	Put(ctx context.Context, content string) (string, error)
	Latest(ctx context.Context) (Script, error)
}

// FileStore keeps the script at one fixed path.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("script path required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the fixed script location.
func (s *FileStore) Path() string {
	return s.path
}

// Put overwrites the script, creating parent directories as needed.
func (s *FileStore) Put(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return "", fmt.Errorf("create script directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return s.path, nil
}

// Latest reads the current script back.
func (s *FileStore) Latest(ctx context.Context) (Script, error) {
	if err := ctx.Err(); err != nil {
		return Script{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Script{}, ErrNoScript
		}
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	return Script{Path: s.path, Content: string(data)}, nil
}
