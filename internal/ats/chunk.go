package ats

import (
	"strings"
	"unicode"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 150
)

// ChunkText splits text into windows of at most size runes that overlap by
// overlap runes. Breaks prefer whitespace in the back half of a window.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			for i := end; i > start+size/2; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
