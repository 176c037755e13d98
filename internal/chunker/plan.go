package chunker

import "fmt"

// DefaultMaxChunkSize is the page window used when no size is configured.
const DefaultMaxChunkSize = 10

// Chunk is a contiguous page window of one document.
// Pages are 0-based and EndPage is exclusive, so EndPage-StartPage == PageCount.
type Chunk struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	PageCount int    `json:"page_count"`
}

// FirstPage returns the 1-based number of the chunk's first page.
func (c Chunk) FirstPage() int {
	return c.StartPage + 1
}

// LastPage returns the 1-based number of the chunk's last page.
func (c Chunk) LastPage() int {
	return c.EndPage
}

// Range returns the chunk's pages as a 1-based inclusive range, e.g. "11-20".
func (c Chunk) Range() string {
	return fmt.Sprintf("%d-%d", c.FirstPage(), c.LastPage())
}

// Plan splits a document of totalPages into ordered windows of at most
// maxChunkSize pages. A document that fits in one window yields a single
// chunk labeled "full".
func Plan(totalPages, maxChunkSize int) []Chunk {
	if totalPages <= 0 {
		return nil
	}
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	if totalPages <= maxChunkSize {
		return []Chunk{{
			Index:     0,
			Label:     "full",
			StartPage: 0,
			EndPage:   totalPages,
			PageCount: totalPages,
		}}
	}

	count := (totalPages + maxChunkSize - 1) / maxChunkSize
	chunks := make([]Chunk, 0, count)
	for i := range count {
		start := i * maxChunkSize
		end := min(start+maxChunkSize, totalPages)
		chunks = append(chunks, Chunk{
			Index:     i,
			Label:     fmt.Sprintf("part_%d_pages_%d-%d", i+1, start+1, end),
			StartPage: start,
			EndPage:   end,
			PageCount: end - start,
		})
	}
	return chunks
}

// TotalPages sums the page counts of chunks.
func TotalPages(chunks []Chunk) int {
	total := 0
	for _, c := range chunks {
		total += c.PageCount
	}
	return total
}
