// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, splits on every byte that is not an ASCII letter or
// digit, and removes stop-words. No stemming is applied.
package tokenizer

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "of": {},
	"for": {}, "with": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"it": {}, "he": {}, "she": {}, "they": {}, "i": {}, "you": {},
	"and": {}, "or": {}, "but": {},
}

// Token represents a single normalised term and its position in the
// filtered token sequence of a field.
type Token struct {
	Term     string
	Position uint32
}

// Tokenize breaks text into lowercased Tokens with stop-words removed.
// Positions count only the tokens that survive filtering.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	var pos uint32
	emit := func(word []byte) {
		term := string(word)
		if IsStopWord(term) {
			return
		}
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}

	buf := make([]byte, 0, 32)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			buf = append(buf, c)
		case c >= 'A' && c <= 'Z':
			buf = append(buf, c+('a'-'A'))
		default:
			if len(buf) > 0 {
				emit(buf)
				buf = buf[:0]
			}
		}
	}
	if len(buf) > 0 {
		emit(buf)
	}
	return tokens
}

// Terms returns only the term strings of Tokenize(text).
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// Normalize returns the first term Tokenize yields for text, or "" when the
// text holds nothing but stop-words and punctuation.
func Normalize(text string) string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0].Term
}

func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}
