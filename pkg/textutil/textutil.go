// Package textutil holds the word-level text helpers used when preparing
// transcripts for embedding and display.
package textutil

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the number of words per chunk.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the number of words shared by adjacent chunks.
	DefaultChunkOverlap = 100

	// DefaultExcerptWords is the length of a summary excerpt.
	DefaultExcerptWords = 100
)

// Chunk splits text into overlapping windows of size words, each starting
// size-overlap words after the previous one. The last window ends at the last
// word. Text without words is returned as a single chunk.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	step := size - overlap
	if overlap < 0 || step <= 0 {
		step = size
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := min(i+size, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Excerpt returns the first maxWords words of text followed by "...", or text
// unchanged when it is already short enough.
func Excerpt(text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultExcerptWords
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// Truncate cuts s to at most maxLen bytes, never splitting a rune, and marks
// the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
