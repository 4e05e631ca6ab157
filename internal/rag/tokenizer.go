package rag

import (
	"strings"
	"unicode"
)

// Tokenizer is the single token-counting scheme shared by the chunker and any
// token-budget check elsewhere. Chunk boundaries depend on it being
// deterministic, so there is exactly one implementation wired everywhere.
type Tokenizer interface {
	Encode(text string) []string
	Decode(tokens []string) string
	Count(text string) int
}

// wordTokenizer emits one token per word run, with any whitespace preceding
// the word attached to the token. Concatenating the tokens reproduces the
// input byte-for-byte, which is what lets the chunker decode token windows
// back to text without loss.
type wordTokenizer struct{}

func NewTokenizer() Tokenizer { return wordTokenizer{} }

func (wordTokenizer) Encode(text string) []string {
	if text == "" {
		return nil
	}
	var tokens []string
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		start := i
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}
		tokens = append(tokens, string(runes[start:i]))
	}
	return tokens
}

func (wordTokenizer) Decode(tokens []string) string {
	return strings.Join(tokens, "")
}

func (t wordTokenizer) Count(text string) int {
	return len(t.Encode(text))
}
