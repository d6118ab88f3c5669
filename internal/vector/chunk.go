package vector

import "strings"

// DefaultChunkSize is the window size used when none is configured.
const DefaultChunkSize = 1000

// Chunk splits text into consecutive, non-overlapping windows of size
// words. The last window may be shorter. Whitespace inside a window is
// collapsed to single spaces.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := min(i+size, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
