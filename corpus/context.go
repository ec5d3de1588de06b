package corpus

import (
	"fmt"
	"strings"
)

// BuildContext formats retrieved chunks for injection into a generation
// prompt: one "From {source}: {text}" block per chunk, joined by blank lines.
func BuildContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("From %s: %s", chunk.Source, chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
