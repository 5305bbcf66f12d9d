// Package keyword implements the tokenizer and overlap scorer shared by
// knowledge-base lookup and past-Q&A retrieval. Keyword overlap is the
// only relevance signal the bot uses.
package keyword

import "regexp"

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are dropped from every token set before scoring.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "shall": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "can": {}, "could": {},
	"i": {}, "me": {}, "my": {}, "we": {}, "our": {}, "you": {}, "your": {},
	"he": {}, "she": {}, "it": {}, "they": {}, "them": {}, "and": {},
	"or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"of": {}, "with": {}, "by": {}, "from": {}, "as": {}, "into": {},
	"about": {}, "that": {}, "this": {}, "what": {}, "which": {}, "who": {},
	"how": {}, "when": {}, "where": {}, "why": {}, "not": {}, "no": {},
	"so": {}, "if": {}, "then": {},
}

// Tokenize lowercases text, extracts maximal runs of ASCII letters and
// digits, and drops stopwords. Duplicates collapse into the set.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range tokenPattern.FindAllString(lower(text), -1) {
		if _, stop := stopwords[word]; stop {
			continue
		}
		tokens[word] = struct{}{}
	}
	return tokens
}

// Overlap returns the number of tokens shared by the two texts.
func Overlap(a, b string) int {
	ta := Tokenize(a)
	tb := Tokenize(b)
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	n := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			n++
		}
	}
	return n
}

// OverlapSet scores a pre-tokenized query against a text. Used by callers
// that score one query against many candidates.
func OverlapSet(query map[string]struct{}, text string) int {
	n := 0
	for tok := range Tokenize(text) {
		if _, ok := query[tok]; ok {
			n++
		}
	}
	return n
}

// lower is an ASCII-only lowercase. The token pattern only matches ASCII,
// so full Unicode folding would change nothing but allocate more.
func lower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
