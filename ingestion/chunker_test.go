package ingestion

import (
	"strings"
	"testing"
)

func TestChunkTextRespectsMaxSize(t *testing.T) {
	text := strings.Repeat("word ", 500)
	chunks := ChunkText(text, 100)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d chars", i, len(chunk))
		}
	}

	joined := strings.Join(chunks, " ")
	if joined != strings.TrimSpace(text) {
		t.Fatal("chunking lost or reordered words")
	}
}

func TestChunkTextNeverSplitsWords(t *testing.T) {
	chunks := ChunkText("alpha beta gamma delta", 11)
	want := []string{"alpha beta", "gamma delta"}
	if len(chunks) != len(want) {
		t.Fatalf("got %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestChunkTextOversizedWord(t *testing.T) {
	chunks := ChunkText("supercalifragilistic no", 5)
	if len(chunks) != 2 || chunks[0] != "supercalifragilistic" || chunks[1] != "no" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("   \n\t ", 100); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"notes.pdf":   FormatPDF,
		"NOTES.PDF":   FormatPDF,
		"readme.md":   FormatMarkdown,
		"chapter.txt": FormatText,
		"image.png":   FormatUnknown,
	}
	for path, want := range cases {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %v, want %v", path, got, want)
		}
	}
}
