package esedb

import (
	"fmt"
	"io"
)

// streamSize returns the size of r and leaves its position unchanged.
func streamSize(r io.Seeker) (int64, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}
	return end, nil
}

// seekReaderAt adapts a stream without ReadAt. Each read seeks to the
// requested offset and restores the previous position afterwards.
type seekReaderAt struct {
	rs io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	pos, err := s.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	defer func() {
		if _, serr := s.rs.Seek(pos, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()

	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err = io.ReadFull(s.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
