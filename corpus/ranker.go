package corpus

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Ranker selects the chunks most relevant to a query. Implementations must be
// deterministic for identical inputs. A ranker returning fewer than k chunks
// (including none) is valid when not enough chunks score positively.
type Ranker interface {
	Rank(ctx context.Context, query string, k int) ([]Chunk, error)
}

const (
	phraseBonusWeight  = 5
	conceptBonusWeight = 2
	lengthNormChars    = 200
)

var wordPattern = regexp.MustCompile(`\w+`)

// technicalPhrases is a closed, hand-curated list of multi-word domain terms.
// Extending it is a configuration change, not a runtime concern.
var technicalPhrases = []*regexp.Regexp{
	regexp.MustCompile(`neural networks?`),
	regexp.MustCompile(`machine learning`),
	regexp.MustCompile(`deep learning`),
	regexp.MustCompile(`gradient descent`),
	regexp.MustCompile(`support vector machines?`),
	regexp.MustCompile(`linear regression`),
	regexp.MustCompile(`logistic regression`),
	regexp.MustCompile(`decision trees?`),
	regexp.MustCompile(`random forests?`),
	regexp.MustCompile(`reinforcement learning`),
	regexp.MustCompile(`statistical learning`),
	regexp.MustCompile(`loss functions?`),
	regexp.MustCompile(`activation functions?`),
	regexp.MustCompile(`natural language processing`),
}

// conceptKeywords are generic ML terms that earn a bonus when present in both
// the query and the chunk.
var conceptKeywords = []string{
	"algorithm",
	"model",
	"training",
	"learning",
	"data",
	"network",
	"function",
	"optimization",
	"probability",
	"classification",
}

// KeywordRanker scores chunks by weighted lexical overlap with the query:
// shared word count, a bonus for technical phrases found verbatim in the
// chunk, a bonus for generic ML keywords shared by query and chunk, and a
// length normalization that penalizes very short chunks. No external calls.
type KeywordRanker struct {
	index *Index
}

func NewKeywordRanker(index *Index) *KeywordRanker {
	return &KeywordRanker{index: index}
}

type scoredChunk struct {
	chunk Chunk
	score float64
	order int
}

// Rank returns the top-k chunks with positive score, ordered by score
// descending with ties broken by corpus iteration order.
func (r *KeywordRanker) Rank(_ context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 || r.index == nil {
		return []Chunk{}, nil
	}

	lowerQuery := strings.ToLower(query)
	queryTokens := tokenize(lowerQuery)
	queryPhrases := matchPhrases(lowerQuery)

	scored := make([]scoredChunk, 0)
	order := 0
	for _, source := range r.index.sources {
		for _, text := range r.index.chunks[source] {
			score := scoreChunk(text, queryTokens, queryPhrases)
			if score > 0 {
				scored = append(scored, scoredChunk{
					chunk: Chunk{Source: source, Text: text},
					score: score,
					order: order,
				})
			}
			order++
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	results := make([]Chunk, len(scored))
	for i, sc := range scored {
		results[i] = sc.chunk
	}
	return results, nil
}

var _ Ranker = (*KeywordRanker)(nil)

func scoreChunk(text string, queryTokens map[string]struct{}, queryPhrases []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	lowerText := strings.ToLower(text)
	chunkTokens := tokenize(lowerText)

	overlap := 0
	for token := range queryTokens {
		if _, ok := chunkTokens[token]; ok {
			overlap++
		}
	}

	phraseBonus := 0
	for _, phrase := range queryPhrases {
		if strings.Contains(lowerText, phrase) {
			phraseBonus += phraseBonusWeight
		}
	}

	conceptBonus := 0
	for _, keyword := range conceptKeywords {
		if _, inQuery := queryTokens[keyword]; !inQuery {
			continue
		}
		if _, inChunk := chunkTokens[keyword]; inChunk {
			conceptBonus += conceptBonusWeight
		}
	}

	lengthFactor := math.Min(1.0, float64(len(text))/lengthNormChars)

	return float64(overlap+phraseBonus+conceptBonus) * lengthFactor
}

func tokenize(lower string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range wordPattern.FindAllString(lower, -1) {
		tokens[word] = struct{}{}
	}
	return tokens
}

func matchPhrases(lowerQuery string) []string {
	matches := make([]string, 0)
	for _, phrase := range technicalPhrases {
		if m := phrase.FindString(lowerQuery); m != "" {
			matches = append(matches, m)
		}
	}
	return matches
}
