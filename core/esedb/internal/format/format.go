// Package format defines ESE database file format constants and structures.
//
// This package provides the low-level layout of the ESE file header:
//   - Header field offsets and the file signature
//   - File types and database states
//   - The XOR-32 header checksum
//   - Page size rules per format revision
//
// All multi-byte values in an ESE file are little-endian.
package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ESE file format constants
const (
	// HeaderSize is the size of the file header structure in bytes.
	HeaderSize = 668

	// SignatureOffset is the offset of the 4-byte file signature.
	SignatureOffset = 4

	// ChecksumSeed is the initial value of the XOR-32 header checksum.
	// It equals the signature read as a little-endian uint32.
	ChecksumSeed = 0x89abcdef

	// FormatVersion is the only supported file format version.
	FormatVersion = 0x620

	// ExtendedFormatRevision is the first format revision that allows
	// 2, 16 and 32 KiB pages and the extended page header.
	ExtendedFormatRevision = 0x11

	// DefaultFormatRevision is the revision written by NewHeader
	// (Windows 7 and later).
	DefaultFormatRevision = 0x14

	// MinPageSize is the smallest page size any revision allows.
	MinPageSize = 0x0800

	// MaxPageSize is the largest page size any revision allows.
	MaxPageSize = 0x8000
)

// Signature is the ESE file signature stored at SignatureOffset.
var Signature = []byte{0xef, 0xcd, 0xab, 0x89}

// Header offsets - byte positions in the file header
const (
	// OffsetChecksum is the XOR-32 checksum (4 bytes).
	OffsetChecksum = 0

	// OffsetSignature is the file signature (4 bytes).
	OffsetSignature = SignatureOffset

	// OffsetFormatVersion is the file format version (4 bytes).
	OffsetFormatVersion = 8

	// OffsetFileType is the file type (4 bytes).
	OffsetFileType = 12

	// OffsetDatabaseTime is the database time (8 bytes).
	OffsetDatabaseTime = 16

	// OffsetDatabaseState is the database state (4 bytes).
	OffsetDatabaseState = 52

	// OffsetLastObjectIdentifier is the last object identifier (4 bytes).
	OffsetLastObjectIdentifier = 212

	// OffsetFormatRevision is the file format revision (4 bytes).
	OffsetFormatRevision = 232

	// OffsetPageSize is the page size in bytes (4 bytes).
	OffsetPageSize = 236

	// OffsetRepairCount is the repair count (4 bytes).
	OffsetRepairCount = 240

	// OffsetCreationFormatVersion is the format version at creation (4 bytes).
	OffsetCreationFormatVersion = 340

	// OffsetCreationFormatRevision is the format revision at creation (4 bytes).
	OffsetCreationFormatRevision = 344
)

// FileType identifies what kind of ESE file the header belongs to.
type FileType uint32

// File types - values for the OffsetFileType field
const (
	// FileTypeDatabase is a regular database file (.edb).
	FileTypeDatabase FileType = 0

	// FileTypeStreamingFile is an Exchange streaming file (.stm).
	FileTypeStreamingFile FileType = 1
)

func (t FileType) String() string {
	switch t {
	case FileTypeDatabase:
		return "Database"
	case FileTypeStreamingFile:
		return "Streaming file"
	default:
		return fmt.Sprintf("Unknown (%d)", uint32(t))
	}
}

// DatabaseState is the shutdown state recorded in the header.
type DatabaseState uint32

// Database states - values for the OffsetDatabaseState field
const (
	DatabaseStateJustCreated    DatabaseState = 1
	DatabaseStateDirtyShutdown  DatabaseState = 2
	DatabaseStateCleanShutdown  DatabaseState = 3
	DatabaseStateBeingConverted DatabaseState = 4
	DatabaseStateForceDetach    DatabaseState = 5
)

func (s DatabaseState) String() string {
	switch s {
	case DatabaseStateJustCreated:
		return "Just created"
	case DatabaseStateDirtyShutdown:
		return "Dirty Shutdown"
	case DatabaseStateCleanShutdown:
		return "Clean Shutdown"
	case DatabaseStateBeingConverted:
		return "Being converted"
	case DatabaseStateForceDetach:
		return "Force Detach"
	default:
		return fmt.Sprintf("Unknown (%d)", uint32(s))
	}
}

// Header represents the decoded fields of an ESE file header.
type Header struct {
	// Checksum is the stored XOR-32 checksum.
	Checksum uint32

	// FormatVersion is the file format version (0x620 for all supported files).
	FormatVersion uint32

	// FileType is the file type.
	FileType FileType

	// DatabaseState is the shutdown state.
	DatabaseState DatabaseState

	// LastObjectIdentifier is the highest object identifier in use.
	LastObjectIdentifier uint32

	// FormatRevision is the file format revision.
	FormatRevision uint32

	// PageSize is the page size in bytes.
	PageSize uint32

	// RepairCount is the number of times the file was repaired.
	RepairCount uint32

	// CreationFormatVersion is the format version the file was created with.
	CreationFormatVersion uint32

	// CreationFormatRevision is the format revision the file was created with.
	CreationFormatRevision uint32
}

// HasSignature reports whether data carries the ESE file signature.
// Data shorter than the signature never matches.
func HasSignature(data []byte) bool {
	if len(data) < SignatureOffset+len(Signature) {
		return false
	}
	return bytes.Equal(data[SignatureOffset:SignatureOffset+len(Signature)], Signature)
}

// Parse parses the file header from raw bytes.
// The checksum is decoded but not verified; see Verify.
func (h *Header) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("invalid header size: got %d, want %d", len(data), HeaderSize)
	}

	if !HasSignature(data) {
		return fmt.Errorf("unsupported file signature: % x", data[OffsetSignature:OffsetSignature+4])
	}

	h.Checksum = binary.LittleEndian.Uint32(data[OffsetChecksum:])
	h.FormatVersion = binary.LittleEndian.Uint32(data[OffsetFormatVersion:])
	h.FileType = FileType(binary.LittleEndian.Uint32(data[OffsetFileType:]))
	h.DatabaseState = DatabaseState(binary.LittleEndian.Uint32(data[OffsetDatabaseState:]))
	h.LastObjectIdentifier = binary.LittleEndian.Uint32(data[OffsetLastObjectIdentifier:])
	h.FormatRevision = binary.LittleEndian.Uint32(data[OffsetFormatRevision:])
	h.PageSize = binary.LittleEndian.Uint32(data[OffsetPageSize:])
	h.RepairCount = binary.LittleEndian.Uint32(data[OffsetRepairCount:])
	h.CreationFormatVersion = binary.LittleEndian.Uint32(data[OffsetCreationFormatVersion:])
	h.CreationFormatRevision = binary.LittleEndian.Uint32(data[OffsetCreationFormatRevision:])

	return nil
}

// Verify checks the stored checksum against the header bytes. A database in
// dirty shutdown state is allowed a stale checksum.
func (h *Header) Verify(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("invalid header size: got %d, want %d", len(data), HeaderSize)
	}
	if h.DatabaseState == DatabaseStateDirtyShutdown {
		return nil
	}
	calculated := Checksum(data[:HeaderSize])
	if calculated != h.Checksum {
		return fmt.Errorf("mismatch in file header checksum (0x%08x != 0x%08x)", h.Checksum, calculated)
	}
	return nil
}

// Serialize serializes the header into a HeaderSize buffer with the
// signature set and a freshly computed checksum.
func (h *Header) Serialize() []byte {
	data := make([]byte, HeaderSize)

	copy(data[OffsetSignature:], Signature)
	binary.LittleEndian.PutUint32(data[OffsetFormatVersion:], h.FormatVersion)
	binary.LittleEndian.PutUint32(data[OffsetFileType:], uint32(h.FileType))
	binary.LittleEndian.PutUint32(data[OffsetDatabaseState:], uint32(h.DatabaseState))
	binary.LittleEndian.PutUint32(data[OffsetLastObjectIdentifier:], h.LastObjectIdentifier)
	binary.LittleEndian.PutUint32(data[OffsetFormatRevision:], h.FormatRevision)
	binary.LittleEndian.PutUint32(data[OffsetPageSize:], h.PageSize)
	binary.LittleEndian.PutUint32(data[OffsetRepairCount:], h.RepairCount)
	binary.LittleEndian.PutUint32(data[OffsetCreationFormatVersion:], h.CreationFormatVersion)
	binary.LittleEndian.PutUint32(data[OffsetCreationFormatRevision:], h.CreationFormatRevision)

	h.Checksum = Checksum(data)
	binary.LittleEndian.PutUint32(data[OffsetChecksum:], h.Checksum)

	return data
}

// NewHeader creates a header for a cleanly shut down database with the
// given page size, using the newest known format revision.
func NewHeader(pageSize uint32) *Header {
	return &Header{
		FormatVersion:          FormatVersion,
		FileType:               FileTypeDatabase,
		DatabaseState:          DatabaseStateCleanShutdown,
		FormatRevision:         DefaultFormatRevision,
		PageSize:               pageSize,
		CreationFormatVersion:  FormatVersion,
		CreationFormatRevision: DefaultFormatRevision,
	}
}

// Validate checks the decoded version and page size against the rules of
// the supported format version.
func (h *Header) Validate() error {
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format version: 0x%04x", h.FormatVersion)
	}
	if h.PageSize == 0 {
		return fmt.Errorf("invalid page size")
	}
	if !IsValidPageSize(h.PageSize, h.FormatRevision) {
		return fmt.Errorf("unsupported page size: %d (0x%04x) for format version: 0x%x revision: 0x%x",
			h.PageSize, h.PageSize, h.FormatVersion, h.FormatRevision)
	}
	return nil
}

// Checksum computes the little-endian XOR-32 over data[4:] seeded with
// ChecksumSeed. Trailing bytes that do not fill a word are zero padded.
func Checksum(data []byte) uint32 {
	sum := uint32(ChecksumSeed)
	if len(data) <= 4 {
		return sum
	}
	buf := data[4:]
	for len(buf) >= 4 {
		sum ^= binary.LittleEndian.Uint32(buf)
		buf = buf[4:]
	}
	if len(buf) > 0 {
		var tail [4]byte
		copy(tail[:], buf)
		sum ^= binary.LittleEndian.Uint32(tail[:])
	}
	return sum
}

// IsValidPageSize checks a page size against a format revision.
// Revisions before 0x11 only know 4 and 8 KiB pages; later revisions allow
// every power of two from 2 KiB to 32 KiB.
func IsValidPageSize(size, revision uint32) bool {
	if revision < ExtendedFormatRevision {
		return size == 0x1000 || size == 0x2000
	}
	if size < MinPageSize || size > MaxPageSize {
		return false
	}
	return size&(size-1) == 0
}

// UsesExtendedPageHeader reports whether pages carry the 80-byte header.
func UsesExtendedPageHeader(pageSize, revision uint32) bool {
	return revision >= ExtendedFormatRevision && pageSize >= 0x4000
}
