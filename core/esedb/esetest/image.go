// Package esetest builds small synthetic ESE database images for tests,
// in the spirit of net/http/httptest.
//
// The images carry a valid file header, a backup header and a catalog tree
// rooted at page 4. Catalog entries hold only the fixed columns the engine
// looks at; they are not usable by a full ESE implementation.
package esetest

import (
	"encoding/binary"

	"github.com/FocuswithJustin/esedb/core/esedb/internal/format"
	"github.com/FocuswithJustin/esedb/core/esedb/internal/pager"
)

// Catalog entry types written by Build
const (
	TypeTable  = 1
	TypeColumn = 2
)

// catalogObjectID is the father data page object identifier of the catalog.
const catalogObjectID = 2

// Options describes the image to build. The zero value builds an 8 KiB page
// database with an empty catalog.
type Options struct {
	PageSize      uint32
	Revision      uint32
	FileType      format.FileType
	DatabaseState format.DatabaseState

	// Tables is the number of table definitions in the catalog. Every table
	// is followed by ColumnsPerTable column definitions.
	Tables          int
	ColumnsPerTable int

	// DeletedTables adds table definitions flagged defunct.
	DeletedTables int

	// CatalogLeaves spreads the catalog over this many leaf pages below a
	// branch root. Values below 2 keep a single root leaf.
	CatalogLeaves int

	// CommonKeys stores every leaf key with a zero-length common prefix.
	CommonKeys bool

	// NoBackupHeader zeroes the backup header page.
	NoBackupHeader bool

	// BackupPageSize overrides the page size stored in the backup header.
	BackupPageSize uint32

	// CorruptChecksum flips a byte in the primary header after the checksum
	// is computed.
	CorruptChecksum bool
}

type entry struct {
	key     []byte
	typ     uint16
	id      uint32
	defunct bool
}

// Build returns the raw bytes of an ESE image.
func Build(opts Options) []byte {
	if opts.PageSize == 0 {
		opts.PageSize = 8192
	}
	if opts.Revision == 0 {
		opts.Revision = format.DefaultFormatRevision
	}
	if opts.DatabaseState == 0 {
		opts.DatabaseState = format.DatabaseStateCleanShutdown
	}
	ps := int(opts.PageSize)

	entries := catalogEntries(opts)

	leaves := opts.CatalogLeaves
	if leaves < 2 {
		leaves = 1
	}
	lastPage := int(pager.PageCatalog)
	if leaves > 1 {
		lastPage += leaves
	}

	// Page N starts at (N+1)*ps, after the header and its backup.
	image := make([]byte, (lastPage+2)*ps)

	hdr := format.NewHeader(opts.PageSize)
	hdr.FormatRevision = opts.Revision
	hdr.CreationFormatRevision = opts.Revision
	hdr.FileType = opts.FileType
	hdr.DatabaseState = opts.DatabaseState
	hdr.LastObjectIdentifier = uint32(len(entries) + catalogObjectID)
	primary := hdr.Serialize()
	if opts.CorruptChecksum {
		primary[format.OffsetRepairCount] ^= 0x5a
	}
	copy(image, primary)

	if !opts.NoBackupHeader {
		backup := *hdr
		if opts.BackupPageSize != 0 {
			backup.PageSize = opts.BackupPageSize
		}
		copy(image[ps:], backup.Serialize())
	}

	extended := format.UsesExtendedPageHeader(opts.PageSize, opts.Revision)

	if leaves == 1 {
		values := [][]byte{make([]byte, 16)}
		var flags []uint8
		flags = append(flags, 0)
		for _, e := range entries {
			values = append(values, leafValue(e, opts.CommonKeys))
			flags = append(flags, entryFlags(e, opts.CommonKeys))
		}
		writePage(image, ps, pager.PageCatalog, extended, pager.PageFlagRoot|pager.PageFlagLeaf, 0, 0, values, flags)
		return image
	}

	// Branch root with one child per leaf page.
	perLeaf := (len(entries) + leaves - 1) / leaves
	rootValues := [][]byte{make([]byte, 16)}
	rootFlags := []uint8{0}
	for i := 0; i < leaves; i++ {
		child := pager.PageCatalog + pager.Pgno(i+1)
		rootValues = append(rootValues, branchValue([]byte{byte(i)}, child))
		rootFlags = append(rootFlags, 0)

		start := i * perLeaf
		end := start + perLeaf
		if start > len(entries) {
			start = len(entries)
		}
		if end > len(entries) {
			end = len(entries)
		}

		values := [][]byte{{}}
		flags := []uint8{0}
		for _, e := range entries[start:end] {
			values = append(values, leafValue(e, opts.CommonKeys))
			flags = append(flags, entryFlags(e, opts.CommonKeys))
		}

		var prev, next pager.Pgno
		if i > 0 {
			prev = child - 1
		}
		if i < leaves-1 {
			next = child + 1
		}
		pageFlags := uint32(pager.PageFlagLeaf)
		if len(values) == 1 {
			pageFlags |= pager.PageFlagEmpty
		}
		writePage(image, ps, child, extended, pageFlags, prev, next, values, flags)
	}
	writePage(image, ps, pager.PageCatalog, extended, pager.PageFlagRoot|pager.PageFlagParent, 0, 0, rootValues, rootFlags)

	return image
}

func catalogEntries(opts Options) []entry {
	var entries []entry
	id := uint32(catalogObjectID)
	key := func(n int) []byte {
		k := make([]byte, 4)
		binary.BigEndian.PutUint32(k, uint32(n))
		return k
	}
	n := 0
	for t := 0; t < opts.Tables; t++ {
		id++
		entries = append(entries, entry{key: key(n), typ: TypeTable, id: id})
		n++
		for c := 0; c < opts.ColumnsPerTable; c++ {
			entries = append(entries, entry{key: key(n), typ: TypeColumn, id: uint32(c + 1)})
			n++
		}
	}
	for d := 0; d < opts.DeletedTables; d++ {
		id++
		entries = append(entries, entry{key: key(n), typ: TypeTable, id: id, defunct: true})
		n++
	}
	return entries
}

func entryFlags(e entry, commonKeys bool) uint8 {
	var flags uint8
	if e.defunct {
		flags |= pager.TagFlagDefunct
	}
	if commonKeys {
		flags |= pager.TagFlagCommonKey
	}
	return flags
}

// leafValue encodes [common key size] local key size, key, then a data
// definition with the ObjidTable, Type and Id fixed columns.
func leafValue(e entry, commonKey bool) []byte {
	var v []byte
	if commonKey {
		v = binary.LittleEndian.AppendUint16(v, 0)
	}
	v = binary.LittleEndian.AppendUint16(v, uint16(len(e.key)))
	v = append(v, e.key...)

	// data definition header: last fixed column 3, no variable columns
	v = append(v, 3, 0x7f)
	v = binary.LittleEndian.AppendUint16(v, 4+4+2+4)
	v = binary.LittleEndian.AppendUint32(v, catalogObjectID)
	v = binary.LittleEndian.AppendUint16(v, e.typ)
	v = binary.LittleEndian.AppendUint32(v, e.id)
	return v
}

func branchValue(key []byte, child pager.Pgno) []byte {
	var v []byte
	v = binary.LittleEndian.AppendUint16(v, uint16(len(key)))
	v = append(v, key...)
	v = binary.LittleEndian.AppendUint32(v, uint32(child))
	return v
}

// writePage lays out a page at its file offset: header, values packed from
// the start of the value area, tags packed backwards from the page end.
func writePage(image []byte, ps int, pgno pager.Pgno, extended bool, pageFlags uint32,
	prev, next pager.Pgno, values [][]byte, flags []uint8) {
	page := image[int(pgno+1)*ps : int(pgno+2)*ps]
	headerSize := pager.HeaderSize
	if extended {
		headerSize = pager.ExtendedHeaderSize
	}
	large := ps >= 0x4000

	binary.LittleEndian.PutUint32(page[4:], uint32(pgno))
	binary.LittleEndian.PutUint32(page[16:], uint32(prev))
	binary.LittleEndian.PutUint32(page[20:], uint32(next))
	binary.LittleEndian.PutUint32(page[24:], catalogObjectID)
	binary.LittleEndian.PutUint16(page[34:], uint16(len(values)))
	binary.LittleEndian.PutUint32(page[36:], pageFlags)

	offset := 0
	for i, v := range values {
		data := append([]byte(nil), v...)
		tagOffset := uint16(offset)
		if large {
			if i > 0 && len(data) >= 2 {
				data[1] |= flags[i] << 5
			}
		} else {
			tagOffset |= uint16(flags[i]) << 13
		}
		copy(page[headerSize+offset:], data)

		pos := ps - (i+1)*pager.TagSize
		binary.LittleEndian.PutUint16(page[pos:], uint16(len(data)))
		binary.LittleEndian.PutUint16(page[pos+2:], tagOffset)
		offset += len(data)
	}
	binary.LittleEndian.PutUint16(page[32:], uint16(offset))
}

// RewriteHeader decodes the header stored at offset, applies fn and writes it
// back with a fresh checksum.
func RewriteHeader(image []byte, offset int, fn func(h *format.Header)) {
	var h format.Header
	if err := h.Parse(image[offset:]); err != nil {
		panic(err)
	}
	fn(&h)
	copy(image[offset:], h.Serialize())
}

// PageOffset returns the file offset of page pgno.
func PageOffset(pgno pager.Pgno, pageSize uint32) int {
	return int(pgno+1) * int(pageSize)
}
