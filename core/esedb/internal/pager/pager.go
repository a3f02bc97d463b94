package pager

import (
	"errors"
	"fmt"
	"io"

	"github.com/FocuswithJustin/esedb/core/cache"
	"github.com/FocuswithJustin/esedb/core/esedb/internal/format"
)

// DefaultCacheSize is the default number of pages to cache.
const DefaultCacheSize = 64

// Common errors
var (
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidPageNum  = errors.New("invalid page number")
	ErrShortRead       = errors.New("short page read")
)

// Pager reads pages from a borrowed io.ReaderAt. It never closes the reader.
type Pager struct {
	r        io.ReaderAt
	pageSize uint32
	extended bool
	lastPage Pgno
	cache    *cache.LRU[Pgno, *Page]
}

// New creates a pager over r. fileSize bounds the readable page range.
func New(r io.ReaderAt, fileSize int64, pageSize, revision uint32) (*Pager, error) {
	return NewWithCacheSize(r, fileSize, pageSize, revision, DefaultCacheSize)
}

// NewWithCacheSize creates a pager with a specific page cache size.
func NewWithCacheSize(r io.ReaderAt, fileSize int64, pageSize, revision uint32, cacheSize int) (*Pager, error) {
	if !format.IsValidPageSize(pageSize, revision) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	// The first two pages hold the file header and its backup.
	var lastPage Pgno
	if dataSize := fileSize - 2*int64(pageSize); dataSize > 0 {
		lastPage = Pgno(dataSize / int64(pageSize))
	}

	return &Pager{
		r:        r,
		pageSize: pageSize,
		extended: format.UsesExtendedPageHeader(pageSize, revision),
		lastPage: lastPage,
		cache:    cache.New[Pgno, *Page](cacheSize),
	}, nil
}

// PageSize returns the page size in bytes.
func (p *Pager) PageSize() uint32 {
	return p.pageSize
}

// PageCount returns the highest readable page number.
func (p *Pager) PageCount() Pgno {
	return p.lastPage
}

// Get returns page pgno, reading it if it is not cached.
func (p *Pager) Get(pgno Pgno) (*Page, error) {
	if pgno == 0 || pgno > p.lastPage {
		return nil, fmt.Errorf("%w: %d (last page %d)", ErrInvalidPageNum, pgno, p.lastPage)
	}

	if page, ok := p.cache.Get(pgno); ok {
		return page, nil
	}

	page, err := p.readPage(pgno)
	if err != nil {
		return nil, err
	}
	p.cache.Add(pgno, page)
	return page, nil
}

// Stats returns page cache statistics.
func (p *Pager) Stats() cache.Stats {
	return p.cache.Stats()
}

// Reset drops all cached pages.
func (p *Pager) Reset() {
	p.cache.Purge()
}

func (p *Pager) readPage(pgno Pgno) (*Page, error) {
	data := make([]byte, p.pageSize)
	offset := int64(pgno+1) * int64(p.pageSize)

	n, err := p.r.ReadAt(data, offset)
	if n < len(data) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: page %d at offset %d: %w", ErrShortRead, pgno, offset, err)
	}

	return ParsePage(pgno, data, p.extended)
}
