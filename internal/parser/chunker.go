// Package parser holds the pure text transforms of the pipeline:
// splitting documents into indexable chunks and mining structured chart
// blocks out of analysis responses.
package parser

// DefaultChunkSize is the chunk length used when no size is configured.
const DefaultChunkSize = 2000

// ChunkDocument splits text into consecutive chunks of at most size
// characters. Every chunk except the last is exactly size long; the last
// carries the remainder. Boundaries count runes, not bytes, so multi-byte
// characters are never split mid-sequence. Empty input yields no chunks.
func ChunkDocument(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
