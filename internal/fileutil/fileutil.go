// Package fileutil copies rendered artifacts into place.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSameFile is returned when source and destination resolve to one file.
var ErrSameFile = errors.New("source and destination are the same file")

// CopyFile copies src to dst (mode 0o644), creating dst's parent directories.
func CopyFile(src, dst string) error {
	_, err := copyAtomic(src, dst, 0o644, false)
	return err
}

// CopyFileVerified copies src to dst and compares SHA-256 digests of the bytes
// read and written. dst is left untouched on mismatch.
func CopyFileVerified(src, dst string) error {
	_, err := copyAtomic(src, dst, 0o644, true)
	return err
}

// copyAtomic writes into a sibling temp file and renames it over dst, so a
// reader never observes a half-written video.
func copyAtomic(src, dst string, mode os.FileMode, verify bool) (int64, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return 0, ErrSameFile
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	srcHash := sha256.New()
	dstHash := sha256.New()
	var (
		reader io.Reader = in
		writer io.Writer = tmp
	)
	if verify {
		reader = io.TeeReader(in, srcHash)
		writer = io.MultiWriter(tmp, dstHash)
	}
	written, err := io.Copy(writer, reader)
	if err != nil {
		return written, err
	}
	if verify {
		if written != srcInfo.Size() {
			return written, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
		}
		if !bytes.Equal(srcHash.Sum(nil), dstHash.Sum(nil)) {
			return written, errors.New("copy hash mismatch: file corrupted during copy")
		}
	}
	if err := tmp.Chmod(mode); err != nil {
		return written, err
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return written, fmt.Errorf("move into place: %w", err)
	}
	committed = true
	return written, nil
}
