package chunker

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned when a chunk is offered before its predecessors.
var ErrOutOfOrder = errors.New("chunk out of order")

// OffsetTracker maps window-local page indexes to absolute document pages.
// Chunks must be advanced strictly in plan order; the running offset is the
// sum of the page counts of every chunk already seen.
type OffsetTracker struct {
	offset int
	next   int
}

// Advance accepts the next chunk and returns the absolute page offset of its
// first page. The 1-based local page i of the chunk is absolute page base+i.
func (t *OffsetTracker) Advance(c Chunk) (int, error) {
	if c.Index != t.next || c.StartPage != t.offset {
		return 0, fmt.Errorf("%w: got chunk %d at page %d, want chunk %d at page %d",
			ErrOutOfOrder, c.Index, c.StartPage, t.next, t.offset)
	}
	if c.PageCount < 0 || c.EndPage-c.StartPage != c.PageCount {
		return 0, fmt.Errorf("chunk %q: inconsistent page range %d-%d (%d pages)",
			c.Label, c.StartPage, c.EndPage, c.PageCount)
	}
	base := t.offset
	t.offset += c.PageCount
	t.next++
	return base, nil
}

// Offset returns the cumulative page count of all chunks advanced so far.
func (t *OffsetTracker) Offset() int {
	return t.offset
}

// Chunks returns how many chunks have been advanced.
func (t *OffsetTracker) Chunks() int {
	return t.next
}
