package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"valid", "data/Windows.edb", nil},
		{"empty", "", ErrEmptyPath},
		{"too long", strings.Repeat("a", MaxPathLength+1), ErrPathTooLong},
		{"null byte", "a\x00b.edb", ErrInvalidCharacter},
		{"control character", "a\nb.edb", ErrInvalidCharacter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath(%q) = %v; want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz.NewWriter failed: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("xz write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz close failed: %v", err)
	}
	return buf.Bytes()
}

func TestIsXZ(t *testing.T) {
	if !IsXZ(compress(t, []byte("payload"))) {
		t.Error("IsXZ should detect xz output")
	}
	if IsXZ([]byte{0xfd, '7', 'z'}) {
		t.Error("IsXZ should reject a truncated magic")
	}
	if IsXZ(nil) {
		t.Error("IsXZ should reject empty input")
	}
}

func TestOpen_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.edb")
	content := []byte("plain content")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if src.Compressed {
		t.Error("plain file reported as compressed")
	}
	if _, ok := src.Reader().(*os.File); !ok {
		t.Errorf("Reader() = %T; want the file itself", src.Reader())
	}
	got, err := io.ReadAll(src.Reader())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content = %q; want %q", got, content)
	}
}

func TestOpen_Compressed(t *testing.T) {
	content := bytes.Repeat([]byte{0xef, 0xcd, 0xab, 0x89}, 2048)
	// Detection is by magic, so the extension does not matter.
	path := filepath.Join(t.TempDir(), "database.bin")
	if err := os.WriteFile(path, compress(t, content), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if !src.Compressed {
		t.Error("xz file not reported as compressed")
	}
	if _, ok := src.Reader().(*os.File); ok {
		t.Error("Reader() returned the compressed file")
	}
	got, err := io.ReadAll(src.Reader())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Error("decompressed content differs")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.xz")
	if err := os.WriteFile(broken, append(append([]byte{}, xzMagic...), 0xff, 0xff), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("Open(\"\") = %v; want ErrEmptyPath", err)
	}
	if _, err := Open(filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open(missing) = %v; want fs.ErrNotExist", err)
	}
	if _, err := Open(broken); err == nil {
		t.Error("Open(broken xz) should fail")
	}
}

func TestOpen_XZReaderError(t *testing.T) {
	orig := xzNewReader
	defer func() { xzNewReader = orig }()
	boom := errors.New("reader unavailable")
	xzNewReader = func(io.Reader) (*xz.Reader, error) { return nil, boom }

	path := filepath.Join(t.TempDir(), "a.xz")
	if err := os.WriteFile(path, compress(t, []byte("x")), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, boom) {
		t.Errorf("Open() = %v; want %v", err, boom)
	}
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	files := []string{"a.edb", filepath.Join("sub", "b.edb"), filepath.Join("sub", "deep", "c.stm")}
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	err := Walk(context.Background(), root, func(path string, info fs.FileInfo) error {
		rel, _ := filepath.Rel(root, path)
		got = append(got, rel)
		if info.Size() != 1 {
			t.Errorf("%s size = %d; want 1", rel, info.Size())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	sort.Strings(got)
	sort.Strings(files)
	if strings.Join(got, ",") != strings.Join(files, ",") {
		t.Errorf("Walk visited %v; want %v", got, files)
	}
}

func TestWalk_Cancelled(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.edb"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Walk(ctx, root, func(string, fs.FileInfo) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Walk() = %v; want context.Canceled", err)
	}
}
