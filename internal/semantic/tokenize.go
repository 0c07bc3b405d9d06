package semantic

import (
	"strings"
	"unicode"
)

// stopwords are excluded from the vocabulary. A document consisting only
// of stopwords has no indexable content and is rejected at Add time.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "after", "all", "also", "an", "and", "any", "are",
		"as", "at", "be", "because", "been", "but", "by", "can", "could",
		"did", "do", "does", "for", "from", "had", "has", "have", "he",
		"her", "here", "his", "how", "i", "if", "in", "into", "is", "it",
		"its", "just", "me", "more", "most", "my", "no", "not", "of",
		"on", "only", "or", "other", "our", "out", "over", "she", "so",
		"some", "such", "than", "that", "the", "their", "them", "then",
		"there", "these", "they", "this", "to", "up", "very", "was",
		"we", "were", "what", "when", "where", "which", "who", "why",
		"will", "with", "would", "you", "your",
	} {
		stopwords[w] = struct{}{}
	}
}

// Tokenize lowercases text, splits it on non-alphanumeric runes, and
// drops single-character tokens and stopwords. The same tokenizer is
// used for documents and queries so their vectors share a vocabulary.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
