package esedb

import (
	stderrors "errors"
	"io"
	"os"

	"github.com/FocuswithJustin/esedb/core/errors"
	"github.com/FocuswithJustin/esedb/core/esedb/internal/format"
)

// signatureProbeSize covers the checksum word and the signature.
const signatureProbeSize = format.SignatureOffset + 4

var errEmptySource = stderrors.New("empty source")

// CheckSignature reports whether the file at path starts with the ESE file
// signature. A readable file that is too short or holds other data returns
// false; an empty or unreadable file returns an error.
func CheckSignature(path string) (bool, error) {
	const op = "check signature"
	if path == "" {
		return false, errors.NewArgument(op, "path", "unsupported source object type")
	}

	fd, err := os.Open(path)
	if err != nil {
		return false, errors.NewIO(op, path, err)
	}
	defer fd.Close()

	info, err := fd.Stat()
	if err != nil {
		return false, errors.NewIO(op, path, err)
	}
	if info.Size() == 0 {
		return false, errors.NewIO(op, path, errEmptySource)
	}

	buf := make([]byte, signatureProbeSize)
	n, err := fd.ReadAt(buf, 0)
	if n < len(buf) {
		if err != nil && err != io.EOF {
			return false, errors.NewIO(op, path, err)
		}
		return false, nil
	}
	return format.HasSignature(buf), nil
}

// CheckSignatureReader reports whether r starts with the ESE file
// signature. The position of r is restored before returning.
func CheckSignatureReader(r io.ReadSeeker) (ok bool, err error) {
	const op = "check signature"
	if isNil(r) {
		return false, errors.NewArgument(op, "stream", "unsupported source object type")
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, errors.NewIO(op, streamSource, err)
	}
	defer func() {
		if _, serr := r.Seek(pos, io.SeekStart); serr != nil && err == nil {
			ok, err = false, errors.NewIO(op, streamSource, serr)
		}
	}()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false, errors.NewIO(op, streamSource, err)
	}

	buf := make([]byte, signatureProbeSize)
	switch _, err := io.ReadFull(r, buf); err {
	case nil:
		return format.HasSignature(buf), nil
	case io.EOF:
		return false, errors.NewIO(op, streamSource, errEmptySource)
	case io.ErrUnexpectedEOF:
		return false, nil
	default:
		return false, errors.NewIO(op, streamSource, err)
	}
}
