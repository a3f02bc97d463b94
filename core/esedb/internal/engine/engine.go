// Package engine opens ESE database files at the header level.
//
// A Session reads and reconciles the primary and backup file headers,
// validates the format version and page size, and answers the metadata
// questions the public package exposes. The only page-level work it does is
// counting table definitions in the catalog.
package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/FocuswithJustin/esedb/core/esedb/internal/format"
	"github.com/FocuswithJustin/esedb/core/esedb/internal/pager"
	"github.com/FocuswithJustin/esedb/internal/logging"
)

// Common errors
var (
	ErrAborted      = errors.New("aborted")
	ErrNoBackup     = errors.New("unable to read backup file header")
	ErrHeaderRead   = errors.New("unable to read file header")
	ErrSessionEnded = errors.New("session closed")
)

// Options configures a Session.
type Options struct {
	// Abort is polled during long operations. It may be nil.
	Abort *atomic.Bool

	// CacheSize is the number of pages to cache (default pager.DefaultCacheSize).
	CacheSize int
}

// Session is an open ESE file. It borrows the reader and never closes it.
type Session struct {
	mu     sync.Mutex
	r      io.ReaderAt
	header format.Header
	pager  *pager.Pager
	abort  *atomic.Bool

	tables     uint32
	tablesRead bool

	backupOffset int64
}

// Open reads and validates the file headers of r. size is the total size of
// the file in bytes.
func Open(r io.ReaderAt, size int64, opts Options) (*Session, error) {
	s := &Session{r: r, abort: opts.Abort}
	if s.abort == nil {
		s.abort = new(atomic.Bool)
	}

	if err := s.readHeaders(); err != nil {
		return nil, err
	}
	if err := s.header.Validate(); err != nil {
		return nil, err
	}

	cacheSize := opts.CacheSize
	if cacheSize == 0 {
		cacheSize = pager.DefaultCacheSize
	}
	p, err := pager.NewWithCacheSize(r, size, s.header.PageSize, s.header.FormatRevision, cacheSize)
	if err != nil {
		return nil, err
	}
	s.pager = p

	return s, nil
}

func (s *Session) readHeaders() error {
	primary, err := readHeader(s.r, 0)
	if err != nil {
		return err
	}
	s.header = *primary

	if primary.PageSize == 0 {
		return nil
	}

	backup, err := readHeader(s.r, int64(primary.PageSize))
	if err == nil {
		s.backupOffset = int64(primary.PageSize)
	} else {
		// The primary page size may be damaged; probe the sizes ESE allows.
		for offset := int64(format.MinPageSize); offset <= format.MaxPageSize; offset <<= 1 {
			if backup, err = readHeader(s.r, offset); err == nil {
				s.backupOffset = offset
				break
			}
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoBackup, err)
		}
	}

	s.reconcile(backup)
	return nil
}

// reconcile fills in primary header values from the backup header. A page
// size disagreement is settled by the offset the backup was found at.
func (s *Session) reconcile(backup *format.Header) {
	h := &s.header

	if h.FormatVersion != backup.FormatVersion {
		logging.HeaderMismatch("format_version", h.FormatVersion, backup.FormatVersion)
		if h.FormatVersion == 0 {
			h.FormatVersion = backup.FormatVersion
		}
	}
	if h.FormatRevision != backup.FormatRevision {
		logging.HeaderMismatch("format_revision", h.FormatRevision, backup.FormatRevision)
		if h.FormatRevision == 0 {
			h.FormatRevision = backup.FormatRevision
		}
	}
	if h.PageSize != backup.PageSize {
		logging.HeaderMismatch("page_size", h.PageSize, backup.PageSize)
		h.PageSize = uint32(s.backupOffset)
	}
}

func readHeader(r io.ReaderAt, offset int64) (*format.Header, error) {
	data := make([]byte, format.HeaderSize)
	n, err := r.ReadAt(data, offset)
	if n < len(data) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w at offset %d: %w", ErrHeaderRead, offset, err)
	}

	var h format.Header
	if err := h.Parse(data); err != nil {
		return nil, err
	}
	if err := h.Verify(data); err != nil {
		return nil, err
	}
	return &h, nil
}

// Header returns a copy of the reconciled file header.
func (s *Session) Header() format.Header {
	return s.header
}

// FileType returns the file type.
func (s *Session) FileType() format.FileType {
	return s.header.FileType
}

// PageSize returns the page size in bytes.
func (s *Session) PageSize() uint32 {
	return s.header.PageSize
}

// FormatVersion returns the format version and revision.
func (s *Session) FormatVersion() (uint32, uint32) {
	return s.header.FormatVersion, s.header.FormatRevision
}

// CreationFormatVersion returns the format version and revision the file
// was created with.
func (s *Session) CreationFormatVersion() (uint32, uint32) {
	return s.header.CreationFormatVersion, s.header.CreationFormatRevision
}

// BackupHeaderOffset returns the offset the backup header was read from, or
// 0 when it was not read.
func (s *Session) BackupHeaderOffset() int64 {
	return s.backupOffset
}

// NumberOfTables returns the number of tables defined in the catalog. The
// result is computed once per session.
func (s *Session) NumberOfTables() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pager == nil {
		return 0, ErrSessionEnded
	}
	if s.tablesRead {
		return s.tables, nil
	}
	if s.header.FileType != format.FileTypeDatabase {
		s.tablesRead = true
		return 0, nil
	}

	n, err := countTables(s.pager, pager.PageCatalog, s.abort)
	if err != nil {
		return 0, err
	}
	s.tables = n
	s.tablesRead = true
	return n, nil
}

// Close releases cached pages and drops the reader. The reader itself is
// owned by the caller and stays open.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pager == nil {
		return ErrSessionEnded
	}
	st := s.pager.Stats()
	logging.PageCacheStats(uint32(s.pager.PageCount()), st.Hits, st.Misses, st.Evictions)
	s.pager.Reset()
	s.pager = nil
	s.r = nil
	return nil
}
