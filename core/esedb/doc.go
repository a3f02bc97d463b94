// Package esedb opens Extensible Storage Engine (ESE) database files and
// reports their header metadata.
//
// ESE, also known as JET Blue, backs Active Directory (ntds.dit), Exchange
// mailbox stores, Windows Search (Windows.edb) and many other Windows
// components. This package checks file signatures and exposes the file type,
// format version, page size and number of tables. It does not decode records.
//
// # File lifecycle
//
// A File starts closed. It can be opened from a path, in which case the File
// owns the operating system file, or from a caller-owned io.ReadSeeker,
// which is borrowed and never closed:
//
//	f := esedb.New()
//	if err := f.Open("Windows.edb", esedb.ModeRead); err != nil {
//		return err
//	}
//	defer f.Close()
//
//	tables, err := f.NumberOfTables()
//
// Only read access is supported. Opening an open File or closing a closed
// one fails with an error matching errors.ErrInvalidState.
//
// # Errors
//
// Every error returned by this package matches exactly one of the sentinels
// in the core/errors package:
//
//   - ErrInvalidArgument: a missing path or nil stream
//   - ErrUnsupported: an access mode other than read
//   - ErrInvalidState: open while open, or any use while closed
//   - ErrIO: the source could not be read or is not a valid ESE file
//
// Use errors.KindOf to classify an error without a chain of errors.Is calls.
//
// # Signature check
//
// CheckSignature and CheckSignatureReader test whether a source starts with
// the ESE file signature without opening it. The reader variant restores the
// stream position.
package esedb
