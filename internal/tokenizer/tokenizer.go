// Package tokenizer turns field text into index terms. The same analysis is
// used at index time, by the query parser, and by the bleve and SQLite
// backends, so a term produced by one always matches the others.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token is a single term together with its location in the source text.
// Start and End are byte offsets; Position counts tokens from 0.
type Token struct {
	Term     string
	Start    int
	End      int
	Position int
}

// Tokenize converts a string into a slice of lowercased tokens.
// It splits camel/PascalCase and acronyms ("HTTPRequest" -> "http", "request")
// and splits on every rune that is not a letter or digit.
func Tokenize(text string) []string {
	tokens := TokenizeWithOffsets(text)
	terms := make([]string, len(tokens)) // empty slice, not nil
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// TokenizeWithOffsets is Tokenize but keeps byte offsets and positions.
func TokenizeWithOffsets(text string) []Token {
	runes := make([]runeAt, 0, len(text))
	for off, r := range text {
		runes = append(runes, runeAt{r, off})
	}

	tokens := make([]Token, 0)
	emit := func(from, to int) {
		if from >= to {
			return
		}
		start := runes[from].off
		end := len(text)
		if to < len(runes) {
			end = runes[to].off
		}
		tokens = append(tokens, Token{
			Term:     strings.ToLower(text[start:end]),
			Start:    start,
			End:      end,
			Position: len(tokens),
		})
	}

	start := -1
	for i, ra := range runes {
		if !isWordRune(ra.r) {
			if start >= 0 {
				emit(start, i)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		following := rune(-1)
		if i+1 < len(runes) {
			following = runes[i+1].r
		}
		if isBoundary(runes[i-1].r, ra.r, following) {
			emit(start, i)
			start = i
		}
	}
	if start >= 0 {
		emit(start, len(runes))
	}
	return tokens
}

type runeAt struct {
	r   rune
	off int
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isBoundary reports whether a word splits before cur. following is -1 at
// the end of the text.
func isBoundary(prev, cur, following rune) bool {
	if !unicode.IsUpper(cur) {
		return false
	}
	// "theOffice", "1Password"
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	// "HTTPRequest": split before the last capital of an acronym
	return unicode.IsUpper(prev) && following >= 0 && unicode.IsLower(following)
}

// NormalizeKeyword is the analysis applied to keyword fields: the whole
// value becomes one lowercased, trimmed term.
func NormalizeKeyword(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// GeneratePrefixNGrams creates n-grams from a token, starting from length 1 up to the token's length.
// For example, for the token "search", it produces: "s", "se", "sea", "sear", "searc", "search".
// N-grams are cut on rune boundaries.
func GeneratePrefixNGrams(token string) []string {
	runes := []rune(token)
	ngrams := make([]string, len(runes))
	for i := 1; i <= len(runes); i++ {
		ngrams[i-1] = string(runes[:i])
	}
	return ngrams
}

// TokenizeWithPrefixNGrams combines Tokenize and GeneratePrefixNGrams.
// It produces original tokens and their prefix n-grams (from length 1), without duplicates.
func TokenizeWithPrefixNGrams(text string) []string {
	tokens := Tokenize(text)

	result := make([]string, 0)
	seen := make(map[string]struct{})

	for _, token := range tokens {
		if _, ok := seen[token]; !ok {
			result = append(result, token)
			seen[token] = struct{}{}
		}
		for _, ngram := range GeneratePrefixNGrams(token) {
			if _, ok := seen[ngram]; !ok {
				result = append(result, ngram)
				seen[ngram] = struct{}{}
			}
		}
	}

	return result
}
