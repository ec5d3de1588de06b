// Package ingestion turns source documents into the chunk corpus JSON the
// retrieval layer loads. PDFs are the primary input; plain text and markdown
// are accepted as-is.
package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Format identifies how a source file's text is extracted.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatUnknown  Format = "unknown"
)

// DetectFormat maps a file path to its extraction format by extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

// ExtractText returns the plain text of a source document.
func ExtractText(path string) (string, error) {
	switch DetectFormat(path) {
	case FormatPDF:
		return extractPDFText(path)
	case FormatMarkdown, FormatText:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}
}

func extractPDFText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// Service walks source folders and produces corpus files.
type Service struct {
	maxChunkSize int
	logger       *log.Logger
}

func NewService(maxChunkSize int, logger *log.Logger) *Service {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultChunkSize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{maxChunkSize: maxChunkSize, logger: logger}
}

// ProcessFolder chunks every supported document in folder and writes the
// result to output as a source-to-chunks JSON object. Unsupported files are
// skipped; extraction failures are logged and skipped so one bad document
// does not sink the batch.
func (s *Service) ProcessFolder(ctx context.Context, folder, output string) error {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return fmt.Errorf("read folder: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || DetectFormat(entry.Name()) == FormatUnknown {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	chunked := make(map[string][]string, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Printf("processing %s", name)
		text, err := ExtractText(filepath.Join(folder, name))
		if err != nil {
			s.logger.Printf("skipping %s: %v", name, err)
			continue
		}
		chunked[name] = ChunkText(text, s.maxChunkSize)
	}

	payload, err := json.MarshalIndent(chunked, "", "  ")
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}

	s.logger.Printf("saved %d documents to %s", len(chunked), output)
	return nil
}
