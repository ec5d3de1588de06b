package corpus_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/fabfab/profai/corpus"
)

func TestRankReturnsMostRelevantChunk(t *testing.T) {
	idx := corpus.NewIndex()
	idx.Add("doc1.pdf", "neural networks process information", "unrelated text about cooking")

	ranker := corpus.NewKeywordRanker(idx)
	results, err := ranker.Rank(context.Background(), "neural networks", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []corpus.Chunk{{Source: "doc1.pdf", Text: "neural networks process information"}}
	if !reflect.DeepEqual(results, want) {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	idx := corpus.NewIndex()
	idx.Add("a.pdf", "machine learning models need training data to generalize well across tasks")
	idx.Add("b.pdf", "training data quality drives machine learning model performance in practice")
	idx.Add("c.pdf", "deep learning networks learn representations from raw training data automatically")

	ranker := corpus.NewKeywordRanker(idx)
	first, err := ranker.Rank(context.Background(), "machine learning training data", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ranker.Rank(context.Background(), "machine learning training data", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ranking is not deterministic:\n%v\n%v", first, second)
	}
}

func TestRankRespectsTopKBound(t *testing.T) {
	idx := corpus.NewIndex()
	idx.Add("doc.pdf",
		"learning about data helps build models that learn from examples in data",
		"models need data and learning signals to improve over many iterations",
		"data driven learning is the heart of every model we build today",
	)

	ranker := corpus.NewKeywordRanker(idx)
	for _, k := range []int{0, 1, 2, 10} {
		results, err := ranker.Rank(context.Background(), "learning data model", k)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) > k {
			t.Fatalf("k=%d: got %d results", k, len(results))
		}
	}

	results, err := ranker.Rank(context.Background(), "learning data model", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result for k=0, got %v", results)
	}
}

func TestRankMonotonicScoring(t *testing.T) {
	query := "support vector machines classify data"
	filler := "an entirely different paragraph about gardening and weekend cooking recipes with no technical content"

	idx := corpus.NewIndex()
	idx.Add("doc.pdf", filler+" data", filler)

	ranker := corpus.NewKeywordRanker(idx)
	before, err := ranker.Rank(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Appending the exact query text cannot decrease a chunk's rank.
	boosted := corpus.NewIndex()
	boosted.Add("doc.pdf", filler+" data", filler+" "+query)

	after, err := corpus.NewKeywordRanker(boosted).Rank(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rankOf := func(results []corpus.Chunk, substr string) int {
		for i, c := range results {
			if strings.Contains(c.Text, substr) {
				return i
			}
		}
		return len(results)
	}

	if rankOf(after, query) > rankOf(before, filler) {
		t.Fatalf("boosted chunk ranked lower: before=%v after=%v", before, after)
	}
}

func TestRankEmptyQueryAndEmptyIndex(t *testing.T) {
	idx := corpus.NewIndex()
	idx.Add("doc.pdf", "some chunk with learning content about models and data")

	results, err := corpus.NewKeywordRanker(idx).Rank(context.Background(), "", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for empty query, got %v", results)
	}

	results, err = corpus.NewKeywordRanker(corpus.NewIndex()).Rank(context.Background(), "anything at all", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for empty index, got %v", results)
	}
}

func TestRankDropsZeroScores(t *testing.T) {
	idx := corpus.NewIndex()
	idx.Add("doc.pdf", "completely unrelated prose concerning medieval architecture and stained glass windows")

	results, err := corpus.NewKeywordRanker(idx).Rank(context.Background(), "gradient descent optimization", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected zero-score chunks to be dropped, got %v", results)
	}
}

func TestRankPhraseBonusOutweighsPlainOverlap(t *testing.T) {
	phraseChunk := "neural networks are layered models trained by adjusting weights across epochs"
	plainChunk := "networks of roads and neural pathways are discussed separately in this section of text"

	idx := corpus.NewIndex()
	idx.Add("doc.pdf", plainChunk, phraseChunk)

	results, err := corpus.NewKeywordRanker(idx).Rank(context.Background(), "neural networks", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 || results[0].Text != phraseChunk {
		t.Fatalf("expected verbatim phrase match ranked first, got %v", results)
	}
}
