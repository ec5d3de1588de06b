// Package corpus loads pre-chunked course material and answers relevance
// queries against it. The index is immutable once loaded, so concurrent
// readers need no coordination; reload wholesale to pick up new corpora.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Chunk is a contiguous span of extracted document text tagged with the
// source document it came from.
type Chunk struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// chunkRecord is the array-of-records corpus shape.
type chunkRecord struct {
	File  string `json:"file"`
	Chunk string `json:"chunk"`
}

// FormatError reports a corpus file that matches neither supported shape.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("corpus %s: unrecognized format: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Index holds the merged chunk corpus as source -> ordered chunk texts.
// Source order follows first appearance across the loaded files, which keeps
// ranking tie-breaks deterministic.
type Index struct {
	sources []string
	chunks  map[string][]string
}

// NewIndex returns an empty index. Useful for tests and for callers that
// assemble chunks programmatically via Add.
func NewIndex() *Index {
	return &Index{chunks: make(map[string][]string)}
}

// Add appends chunk texts under the given source, preserving insertion order.
func (idx *Index) Add(source string, texts ...string) {
	if _, ok := idx.chunks[source]; !ok {
		idx.sources = append(idx.sources, source)
	}
	idx.chunks[source] = append(idx.chunks[source], texts...)
}

// Sources returns the source identifiers in first-appearance order.
func (idx *Index) Sources() []string {
	return append([]string(nil), idx.sources...)
}

// Chunks returns the ordered chunk texts for a source.
func (idx *Index) Chunks(source string) []string {
	return append([]string(nil), idx.chunks[source]...)
}

// Len reports the total number of chunks across all sources.
func (idx *Index) Len() int {
	total := 0
	for _, texts := range idx.chunks {
		total += len(texts)
	}
	return total
}

// Load reads one or more corpus files and merges them into a single index.
// Each file must be either a JSON object mapping source name to an array of
// chunk strings, or a JSON array of {"file": ..., "chunk": ...} records.
// Chunks for the same source across files are concatenated in call order.
// Duplicate text is preserved; callers relying on dedup must do it themselves.
func Load(paths ...string) (*Index, error) {
	idx := NewIndex()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read corpus %s: %w", path, err)
		}
		if err := idx.merge(data); err != nil {
			return nil, &FormatError{Path: path, Err: err}
		}
	}
	return idx, nil
}

func (idx *Index) merge(data []byte) error {
	var bySource map[string][]string
	objErr := json.Unmarshal(data, &bySource)
	if objErr == nil {
		// Map iteration order is random; recover the document key order.
		ordered, err := orderedKeys(data)
		if err != nil {
			return err
		}
		for _, source := range ordered {
			idx.Add(source, bySource[source]...)
		}
		return nil
	}

	var records []chunkRecord
	if arrErr := json.Unmarshal(data, &records); arrErr == nil {
		for _, rec := range records {
			idx.Add(rec.File, rec.Chunk)
		}
		return nil
	}

	return objErr
}

func orderedKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}

	keys := make([]string, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
