package inventory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "inventory.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDriverInfo(t *testing.T) {
	tests := map[string]Info{
		"purego": {DriverName: "sqlite", DriverType: "purego", Package: "modernc.org/sqlite"},
		"cgo":    {DriverName: "sqlite3", DriverType: "cgo", Package: "github.com/mattn/go-sqlite3"},
	}

	info := GetInfo()
	want, ok := tests[info.DriverType]
	if !ok {
		t.Fatalf("unexpected driver type %q", info.DriverType)
	}
	if info != want {
		t.Errorf("GetInfo() = %+v; want %+v", info, want)
	}
}

func TestDigest(t *testing.T) {
	// BLAKE3 of the empty input
	const empty = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	if got := Digest(nil); got != empty {
		t.Errorf("Digest(nil) = %s; want %s", got, empty)
	}
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Error("different inputs should not share a digest")
	}
	if len(Digest([]byte("header"))) != 64 {
		t.Error("digest should be 64 hex characters")
	}
}

func TestStore_ScanLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	fixed := time.Date(2024, 4, 20, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	id, err := s.BeginScan(ctx, "/evidence")
	if err != nil {
		t.Fatalf("BeginScan failed: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("scan id %q is not a UUID", id)
	}

	records := []Record{
		{Path: "/evidence/b/ntds.dit", Size: 16 << 20, FileType: "Database", PageSize: 8192,
			FormatVersion: 0x620, FormatRevision: 0x14, Tables: 12, HeaderDigest: Digest([]byte("b"))},
		{Path: "/evidence/a/Windows.edb", Size: 1 << 20, FileType: "Database", PageSize: 32768,
			FormatVersion: 0x620, FormatRevision: 0x14, Tables: 40, HeaderDigest: Digest([]byte("a"))},
		{Path: "/evidence/c/broken.edb", Size: 4096, FileType: "Unknown",
			HeaderDigest: Digest([]byte("c")), Error: "checksum mismatch"},
	}
	for _, r := range records {
		if err := s.Add(ctx, id, r); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if err := s.FinishScan(ctx, id, 10, 3); err != nil {
		t.Fatalf("FinishScan failed: %v", err)
	}

	scan, err := s.GetScan(ctx, id)
	if err != nil {
		t.Fatalf("GetScan failed: %v", err)
	}
	if scan.Root != "/evidence" || scan.Scanned != 10 || scan.Matched != 3 {
		t.Errorf("GetScan() = %+v", scan)
	}
	if !scan.StartedAt.Equal(fixed) || !scan.FinishedAt.Equal(fixed) {
		t.Errorf("timestamps = %v, %v; want %v", scan.StartedAt, scan.FinishedAt, fixed)
	}

	got, err := s.Records(ctx, id)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Records() returned %d records; want 3", len(got))
	}
	if got[0] != records[1] {
		t.Errorf("first record = %+v; want %+v", got[0], records[1])
	}
	if got[1].Tables != 12 || got[1].PageSize != 8192 {
		t.Errorf("second record = %+v", got[1])
	}
	if got[2].Error != "checksum mismatch" {
		t.Errorf("third record error = %q", got[2].Error)
	}
}

func TestStore_AddReplaces(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.BeginScan(ctx, "/data")
	if err != nil {
		t.Fatal(err)
	}
	r := Record{Path: "/data/x.edb", FileType: "Database", Tables: 1, HeaderDigest: "d"}
	if err := s.Add(ctx, id, r); err != nil {
		t.Fatal(err)
	}
	r.Tables = 2
	if err := s.Add(ctx, id, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.Records(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Tables != 2 {
		t.Errorf("Records() = %+v; want one record with 2 tables", got)
	}
}

func TestStore_SeenBefore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	digest := Digest([]byte("same header"))

	first, _ := s.BeginScan(ctx, "/mnt/one")
	if err := s.Add(ctx, first, Record{Path: "/mnt/one/a.edb", HeaderDigest: digest}); err != nil {
		t.Fatal(err)
	}
	second, _ := s.BeginScan(ctx, "/mnt/two")
	if err := s.Add(ctx, second, Record{Path: "/mnt/two/copy.edb", HeaderDigest: digest}); err != nil {
		t.Fatal(err)
	}

	paths, err := s.SeenBefore(ctx, second, digest)
	if err != nil {
		t.Fatalf("SeenBefore failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/mnt/one/a.edb" {
		t.Errorf("SeenBefore() = %v; want [/mnt/one/a.edb]", paths)
	}

	paths, err = s.SeenBefore(ctx, second, Digest([]byte("other")))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Errorf("SeenBefore(unknown) = %v; want none", paths)
	}
}

func TestStore_UnknownScan(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if _, err := s.GetScan(ctx, "missing"); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("GetScan(missing) = %v; want ErrScanNotFound", err)
	}
	if err := s.FinishScan(ctx, "missing", 0, 0); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("FinishScan(missing) = %v; want ErrScanNotFound", err)
	}
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventory.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.BeginScan(ctx, "/data")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, err := s.GetScan(ctx, id); err != nil {
		t.Errorf("GetScan after reopen: %v", err)
	}
}
