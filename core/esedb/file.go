package esedb

import (
	"io"
	"os"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/FocuswithJustin/esedb/core/errors"
	"github.com/FocuswithJustin/esedb/core/esedb/internal/engine"
	"github.com/FocuswithJustin/esedb/core/esedb/internal/format"
	"github.com/FocuswithJustin/esedb/internal/logging"
)

// ModeRead is the only supported access mode. An empty mode means ModeRead.
const ModeRead = "r"

// HeaderSize is the size of the ESE file header in bytes.
const HeaderSize = format.HeaderSize

// streamSource names borrowed streams in errors and logs.
const streamSource = "stream"

// FileType identifies the kind of ESE file.
type FileType = format.FileType

// File types
const (
	FileTypeDatabase      = format.FileTypeDatabase
	FileTypeStreamingFile = format.FileTypeStreamingFile
)

// DatabaseState is the shutdown state recorded in the file header.
type DatabaseState = format.DatabaseState

// File is a handle to an ESE file. The zero value is a closed File.
//
// A File is meant to be used by one goroutine at a time; only SignalAbort
// may be called concurrently with other methods.
type File struct {
	mu      sync.Mutex
	session *engine.Session
	owned   *os.File
	source  string
	cleanup runtime.Cleanup
	abort   atomic.Bool
}

// New returns a closed File.
func New() *File {
	return &File{}
}

// Open opens the file at path for reading.
func (f *File) Open(path string, mode string) error {
	const op = "open"
	if err := checkMode(op, mode); err != nil {
		return err
	}
	if path == "" {
		return errors.NewArgument(op, "path", "unsupported source object type")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session != nil {
		return errors.NewState(op, "already open")
	}
	f.abort.Store(false)

	fd, err := os.Open(path)
	if err != nil {
		return errors.NewIO(op, path, err)
	}
	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return errors.NewIO(op, path, err)
	}

	session, err := engine.Open(fd, info.Size(), engine.Options{Abort: &f.abort})
	if err != nil {
		fd.Close()
		return errors.NewIO(op, path, err)
	}

	f.session = session
	f.owned = fd
	f.source = path
	f.cleanup = runtime.AddCleanup(f, releaseAbandoned, fd)

	logging.FileOpened(path, session.FileType().String(), session.PageSize())
	return nil
}

// OpenReader opens a caller-owned stream for reading. The File never closes
// r; the caller must keep it usable until Close returns.
func (f *File) OpenReader(r io.ReadSeeker, mode string) error {
	const op = "open"
	if err := checkMode(op, mode); err != nil {
		return err
	}
	if isNil(r) {
		return errors.NewArgument(op, "stream", "unsupported source object type")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session != nil {
		return errors.NewState(op, "already open")
	}
	f.abort.Store(false)

	size, err := streamSize(r)
	if err != nil {
		return errors.NewIO(op, streamSource, err)
	}

	ra, ok := r.(io.ReaderAt)
	if !ok {
		ra = &seekReaderAt{rs: r}
	}

	session, err := engine.Open(ra, size, engine.Options{Abort: &f.abort})
	if err != nil {
		return errors.NewIO(op, streamSource, err)
	}

	f.session = session
	f.source = streamSource

	logging.FileOpened(streamSource, session.FileType().String(), session.PageSize())
	return nil
}

// Close releases the File. A file opened by path is closed; a borrowed
// stream is left open. Release errors are logged, and the File is closed
// afterwards in every case.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return errors.NewState("close", "not open")
	}

	if err := f.session.Close(); err != nil {
		logging.TeardownError(f.source, "close session", err)
	}
	if f.owned != nil {
		f.cleanup.Stop()
		if err := f.owned.Close(); err != nil {
			logging.TeardownError(f.source, "close file", err)
		}
	}

	logging.FileClosed(f.source)

	f.session = nil
	f.owned = nil
	f.source = ""
	f.cleanup = runtime.Cleanup{}
	return nil
}

// IsOpen reports whether the File is open.
func (f *File) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session != nil
}

// SignalAbort asks a running catalog read to stop. The interrupted call
// fails with an I/O error. Calling it when nothing is running has no effect
// beyond that call; the flag is cleared by the next open.
func (f *File) SignalAbort() {
	f.abort.Store(true)
}

// Type returns the file type.
func (f *File) Type() (FileType, error) {
	s, err := f.openSession("get type")
	if err != nil {
		return 0, err
	}
	return s.FileType(), nil
}

// PageSize returns the database page size in bytes.
func (f *File) PageSize() (uint32, error) {
	s, err := f.openSession("get page size")
	if err != nil {
		return 0, err
	}
	return s.PageSize(), nil
}

// FormatVersion returns the file format version and revision.
func (f *File) FormatVersion() (version, revision uint32, err error) {
	s, err := f.openSession("get format version")
	if err != nil {
		return 0, 0, err
	}
	version, revision = s.FormatVersion()
	return version, revision, nil
}

// CreationFormatVersion returns the format version and revision the file
// was created with.
func (f *File) CreationFormatVersion() (version, revision uint32, err error) {
	s, err := f.openSession("get creation format version")
	if err != nil {
		return 0, 0, err
	}
	version, revision = s.CreationFormatVersion()
	return version, revision, nil
}

// DatabaseState returns the shutdown state recorded in the file header.
func (f *File) DatabaseState() (DatabaseState, error) {
	s, err := f.openSession("get database state")
	if err != nil {
		return 0, err
	}
	return s.Header().DatabaseState, nil
}

// NumberOfTables returns the number of tables in the catalog. Streaming
// files have no catalog and report zero. The catalog is read on the first
// call and the result is kept until Close.
func (f *File) NumberOfTables() (uint32, error) {
	const op = "get number of tables"

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return 0, errors.NewState(op, "not open")
	}
	n, err := f.session.NumberOfTables()
	if err != nil {
		return 0, errors.NewIO("read catalog of", f.source, err)
	}
	return n, nil
}

func (f *File) openSession(op string) (*engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return nil, errors.NewState(op, "not open")
	}
	return f.session, nil
}

// Open opens the file at path for reading.
func Open(path string) (*File, error) {
	f := New()
	if err := f.Open(path, ModeRead); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenReader opens a caller-owned stream for reading.
func OpenReader(r io.ReadSeeker) (*File, error) {
	f := New()
	if err := f.OpenReader(r, ModeRead); err != nil {
		return nil, err
	}
	return f, nil
}

func checkMode(op, mode string) error {
	if mode == "" || mode == ModeRead {
		return nil
	}
	return errors.NewUnsupported(op, "mode", mode)
}

// isNil reports whether r is nil or a typed nil pointer such as (*os.File)(nil).
func isNil(r io.ReadSeeker) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// releaseAbandoned is registered as the cleanup of every File opened by path.
var releaseAbandoned = closeAbandoned

// closeAbandoned releases a descriptor whose File became unreachable while
// open.
func closeAbandoned(fd *os.File) {
	if err := fd.Close(); err != nil {
		logging.TeardownError(fd.Name(), "cleanup", err)
	}
}
