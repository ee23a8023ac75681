package search

import (
	"math"
	"strings"
	"unicode"
)

// tokenize lowercases s and splits it on non-alphanumeric runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// lexicalScore rates how well title and content cover the query tokens.
// Title hits count double. The result is normalized to [0,1] so it can be
// blended with cosine similarity.
func lexicalScore(queryTokens []string, title, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	titleTokens := tokenSet(tokenize(title))
	contentTokens := tokenSet(tokenize(content))

	var score float64
	for _, token := range queryTokens {
		if titleTokens[token] {
			score += 2
		} else if contentTokens[token] {
			score += 1
		}
	}
	return score / float64(2*len(queryTokens))
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
