// Package pager reads ESE database pages.
//
// An ESE file starts with two header pages (the file header and its backup);
// database page N lives at byte offset (N+1)*pageSize. The pager reads whole
// pages through an io.ReaderAt it does not own, decodes the page header and
// the page tag array, and keeps recently used pages in an LRU cache.
//
// # Page layout
//
//	+---------------------+  offset 0
//	| page header         |  40 bytes, 80 for large pages of revision >= 0x11
//	+---------------------+
//	| page values         |  addressed by tag offset, relative to header end
//	|        ...          |
//	+---------------------+
//	| page tags           |  4 bytes each, tag 0 last in the page
//	+---------------------+  offset pageSize
//
// Each tag holds a 16-bit value size and a 16-bit value offset. Pages smaller
// than 16 KiB keep three flag bits in the top of the offset word; larger pages
// keep them in the top bits of the value's first word.
//
// Example usage:
//
//	p, err := pager.New(file, fileSize, 8192, 0x14)
//	if err != nil {
//	    return err
//	}
//	page, err := p.Get(pager.PageCatalog)
//	if err != nil {
//	    return err
//	}
//	for i := 1; i < page.NumValues(); i++ {
//	    v, flags, err := page.Value(i)
//	    ...
//	}
package pager
