// Package source opens command line inputs for inspection.
//
// Paths are validated before use, and xz-compressed files are decompressed
// into memory so they can be read like any other database file.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ulikunitz/xz"
)

// Limits
const (
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096

	// MaxDecompressedSize caps the size of a decompressed xz input (1 GiB).
	MaxDecompressedSize = 1 << 30
)

// Common errors
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrTooLarge         = errors.New("decompressed input too large")
)

// xzMagic is the xz stream header magic.
var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// Injectable functions for testing
var (
	osOpen      = os.Open
	xzNewReader = xz.NewReader
)

// ValidatePath rejects empty and overlong paths and paths with control
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// IsXZ reports whether data starts with the xz stream magic.
func IsXZ(data []byte) bool {
	return bytes.HasPrefix(data, xzMagic)
}

// Source is an opened input.
type Source struct {
	// Path is the path the source was opened from.
	Path string

	// Compressed is true when the input was xz-compressed.
	Compressed bool

	r io.ReadSeeker
	f *os.File
}

// Open validates path and opens it. Compressed inputs are detected by their
// magic bytes, not by extension.
func Open(path string) (*Source, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	f, err := osOpen(path)
	if err != nil {
		return nil, err
	}

	magic := make([]byte, len(xzMagic))
	n, err := f.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !IsXZ(magic[:n]) {
		return &Source{Path: path, r: f, f: f}, nil
	}

	defer f.Close()
	data, err := decompress(f)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return &Source{Path: path, Compressed: true, r: bytes.NewReader(data)}, nil
}

func decompress(r io.Reader) ([]byte, error) {
	xzReader, err := xzNewReader(r)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(xzReader, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDecompressedSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Reader returns the readable content of the source.
func (s *Source) Reader() io.ReadSeeker {
	return s.r
}

// Close releases the source.
func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Walk calls fn for every regular file below root. Symbolic links are not
// followed. Walk stops when ctx is done.
func Walk(ctx context.Context, root string, fn func(path string, info fs.FileInfo) error) error {
	if err := ValidatePath(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(path, info)
	})
}
