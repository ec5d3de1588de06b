package ingestion

import "strings"

const defaultChunkSize = 1000

// ChunkText splits text into word-aligned chunks of at most maxSize
// characters. Words are never split; a single word longer than maxSize
// becomes its own chunk.
func ChunkText(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}

	words := strings.Fields(text)
	var (
		chunks  []string
		current []string
		length  int
	)
	for _, word := range words {
		if length+len(word)+1 > maxSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			length = 0
		}
		current = append(current, word)
		length += len(word) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
