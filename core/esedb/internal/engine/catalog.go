package engine

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/FocuswithJustin/esedb/core/esedb/internal/pager"
)

const (
	// catalogTypeTable is the catalog entry type of a table definition.
	catalogTypeTable = 1

	// catalogObjectID is the father data page object identifier of the
	// catalog tree.
	catalogObjectID = 2

	// maxTreeDepth bounds recursion through corrupt branch pages.
	maxTreeDepth = 16

	// Catalog record layout: a 4-byte data definition header followed by
	// the fixed columns ObjidTable (4 bytes) and Type (2 bytes).
	dataDefinitionHeaderSize = 4
	catalogTypeOffset        = dataDefinitionHeaderSize + 4
)

type catalogWalker struct {
	p       *pager.Pager
	abort   *atomic.Bool
	visited map[pager.Pgno]bool
	tables  uint32
}

// countTables walks the catalog tree rooted at root and counts the live
// table definitions in its leaf pages.
func countTables(p *pager.Pager, root pager.Pgno, abort *atomic.Bool) (uint32, error) {
	w := &catalogWalker{
		p:       p,
		abort:   abort,
		visited: make(map[pager.Pgno]bool),
	}
	if err := w.walk(root, 0); err != nil {
		return 0, fmt.Errorf("catalog: %w", err)
	}
	return w.tables, nil
}

func (w *catalogWalker) walk(pgno pager.Pgno, depth int) error {
	if w.abort != nil && w.abort.Load() {
		return ErrAborted
	}
	if depth > maxTreeDepth {
		return fmt.Errorf("page %d: tree depth exceeds %d", pgno, maxTreeDepth)
	}
	if w.visited[pgno] {
		return fmt.Errorf("page %d: referenced twice", pgno)
	}
	w.visited[pgno] = true

	page, err := w.p.Get(pgno)
	if err != nil {
		return err
	}
	if page.FatherObjectID != catalogObjectID {
		return fmt.Errorf("page %d: belongs to object %d, not the catalog", pgno, page.FatherObjectID)
	}
	if page.IsEmpty() {
		return nil
	}

	// Value 0 holds the page's common key or root header.
	for i := 1; i < page.NumValues(); i++ {
		value, flags, err := page.Value(i)
		if err != nil {
			return err
		}
		if flags&pager.TagFlagDefunct != 0 {
			continue
		}

		data, err := skipKey(value, flags)
		if err != nil {
			return fmt.Errorf("page %d value %d: %w", pgno, i, err)
		}

		if page.IsLeaf() {
			if len(data) < catalogTypeOffset+2 {
				return fmt.Errorf("page %d value %d: catalog entry too small: %d bytes", pgno, i, len(data))
			}
			if binary.LittleEndian.Uint16(data[catalogTypeOffset:]) == catalogTypeTable {
				w.tables++
			}
			continue
		}

		if len(data) < 4 {
			return fmt.Errorf("page %d value %d: missing child page number", pgno, i)
		}
		child := pager.Pgno(binary.LittleEndian.Uint32(data[len(data)-4:]))
		if err := w.walk(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// skipKey returns the part of a page value that follows its key.
func skipKey(value []byte, flags uint8) ([]byte, error) {
	if flags&pager.TagFlagCommonKey != 0 {
		if len(value) < 2 {
			return nil, fmt.Errorf("value too small for common key size")
		}
		value = value[2:]
	}
	if len(value) < 2 {
		return nil, fmt.Errorf("value too small for local key size")
	}
	keySize := int(binary.LittleEndian.Uint16(value))
	value = value[2:]
	if keySize > len(value) {
		return nil, fmt.Errorf("local key size %d exceeds value size %d", keySize, len(value))
	}
	return value[keySize:], nil
}
