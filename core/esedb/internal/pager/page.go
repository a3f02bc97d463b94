package pager

import (
	"encoding/binary"
	"fmt"
)

// Pgno represents a page number in the database.
// Page numbers start at 1 (page 0 is reserved/invalid).
type Pgno uint32

// Well-known page numbers
const (
	// PageDatabase is the root page of the database (FDP object 1).
	PageDatabase Pgno = 1

	// PageCatalog is the root page of the catalog (FDP object 2).
	PageCatalog Pgno = 4

	// PageCatalogBackup is the root page of the backup catalog.
	PageCatalogBackup Pgno = 24
)

// Page header sizes
const (
	// HeaderSize is the size of the page header in bytes.
	HeaderSize = 40

	// ExtendedHeaderSize is the size of the page header of large pages in
	// format revision 0x11 and later.
	ExtendedHeaderSize = 80

	// TagSize is the size of one page tag.
	TagSize = 4
)

// Page header offsets
const (
	offsetChecksum             = 0
	offsetPreviousPage         = 16
	offsetNextPage             = 20
	offsetFatherObjectID       = 24
	offsetAvailableDataSize    = 28
	offsetAvailableUncommitted = 30
	offsetAvailableDataOffset  = 32
	offsetAvailablePageTag     = 34
	offsetPageFlags            = 36
)

// Page flags
const (
	PageFlagRoot            = 0x00000001
	PageFlagLeaf            = 0x00000002
	PageFlagParent          = 0x00000004
	PageFlagEmpty           = 0x00000008
	PageFlagSpaceTree       = 0x00000020
	PageFlagIndex           = 0x00000040
	PageFlagLongValue       = 0x00000080
	PageFlagNewRecordFormat = 0x00002000
	PageFlagScrubbed        = 0x00004000
)

// Tag flags
const (
	// TagFlagVersion marks a value with versioned (uncommitted) data.
	TagFlagVersion = 0x01

	// TagFlagDefunct marks a deleted value.
	TagFlagDefunct = 0x02

	// TagFlagCommonKey marks a value whose key shares a prefix with the
	// page's common key; the value starts with the common key size.
	TagFlagCommonKey = 0x04
)

// largePageSize is the first page size whose tags use 15-bit fields.
const largePageSize = 0x4000

// Tag locates one value inside a page.
type Tag struct {
	Offset uint16
	Size   uint16
	Flags  uint8
}

// Page is a decoded database page.
type Page struct {
	// Number is the page number.
	Number Pgno

	// Data is the raw page content.
	Data []byte

	// Checksum is the stored XOR checksum.
	Checksum uint32

	// PreviousPage and NextPage link leaf pages of the same tree.
	PreviousPage Pgno
	NextPage     Pgno

	// FatherObjectID is the object identifier of the tree owning the page.
	FatherObjectID uint32

	AvailableDataSize        uint16
	AvailableUncommittedSize uint16
	AvailableDataOffset      uint16
	AvailablePageTag         uint16

	// Flags holds the page flags.
	Flags uint32

	headerSize int
	tags       []Tag
}

// ParsePage decodes the page header and tag array of a raw page.
func ParsePage(pgno Pgno, data []byte, extendedHeader bool) (*Page, error) {
	headerSize := HeaderSize
	if extendedHeader {
		headerSize = ExtendedHeaderSize
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("page %d: data too small: %d bytes", pgno, len(data))
	}

	p := &Page{
		Number:                   pgno,
		Data:                     data,
		Checksum:                 binary.LittleEndian.Uint32(data[offsetChecksum:]),
		PreviousPage:             Pgno(binary.LittleEndian.Uint32(data[offsetPreviousPage:])),
		NextPage:                 Pgno(binary.LittleEndian.Uint32(data[offsetNextPage:])),
		FatherObjectID:           binary.LittleEndian.Uint32(data[offsetFatherObjectID:]),
		AvailableDataSize:        binary.LittleEndian.Uint16(data[offsetAvailableDataSize:]),
		AvailableUncommittedSize: binary.LittleEndian.Uint16(data[offsetAvailableUncommitted:]),
		AvailableDataOffset:      binary.LittleEndian.Uint16(data[offsetAvailableDataOffset:]),
		AvailablePageTag:         binary.LittleEndian.Uint16(data[offsetAvailablePageTag:]),
		Flags:                    binary.LittleEndian.Uint32(data[offsetPageFlags:]),
		headerSize:               headerSize,
	}

	if err := p.readTags(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) readTags() error {
	count := int(p.AvailablePageTag)
	if count == 0 {
		return nil
	}
	if p.headerSize+count*TagSize > len(p.Data) {
		return fmt.Errorf("page %d: %d tags exceed page size", p.Number, count)
	}

	large := len(p.Data) >= largePageSize
	valuesSize := len(p.Data) - p.headerSize

	p.tags = make([]Tag, count)
	for i := 0; i < count; i++ {
		pos := len(p.Data) - (i+1)*TagSize
		size := binary.LittleEndian.Uint16(p.Data[pos:])
		offset := binary.LittleEndian.Uint16(p.Data[pos+2:])

		var tag Tag
		if large {
			tag.Size = size & 0x7fff
			tag.Offset = offset & 0x7fff
		} else {
			tag.Flags = uint8(offset >> 13)
			tag.Size = size & 0x1fff
			tag.Offset = offset & 0x1fff
		}
		if int(tag.Offset)+int(tag.Size) > valuesSize {
			return fmt.Errorf("page %d: tag %d value out of bounds (offset %d, size %d)",
				p.Number, i, tag.Offset, tag.Size)
		}
		p.tags[i] = tag
	}
	return nil
}

// NumValues returns the number of page values, including value 0 which holds
// the page's common key or root header.
func (p *Page) NumValues() int {
	return len(p.tags)
}

// Value returns the data and flags of value i. For large pages the flags are
// taken from the value's first word and cleared from the returned copy.
func (p *Page) Value(i int) ([]byte, uint8, error) {
	if i < 0 || i >= len(p.tags) {
		return nil, 0, fmt.Errorf("page %d: value index %d out of range [0,%d)", p.Number, i, len(p.tags))
	}
	tag := p.tags[i]
	start := p.headerSize + int(tag.Offset)
	data := p.Data[start : start+int(tag.Size)]

	if len(p.Data) < largePageSize || i == 0 || len(data) < 2 {
		return data, tag.Flags, nil
	}

	value := make([]byte, len(data))
	copy(value, data)
	flags := value[1] >> 5
	value[1] &= 0x1f
	return value, flags, nil
}

// IsRoot reports whether the page is the root of its tree.
func (p *Page) IsRoot() bool { return p.Flags&PageFlagRoot != 0 }

// IsLeaf reports whether the page is a leaf page.
func (p *Page) IsLeaf() bool { return p.Flags&PageFlagLeaf != 0 }

// IsParent reports whether the page is a branch page.
func (p *Page) IsParent() bool { return p.Flags&PageFlagParent != 0 }

// IsEmpty reports whether the page holds no values.
func (p *Page) IsEmpty() bool { return p.Flags&PageFlagEmpty != 0 }

// IsSpaceTree reports whether the page belongs to a space tree.
func (p *Page) IsSpaceTree() bool { return p.Flags&PageFlagSpaceTree != 0 }
