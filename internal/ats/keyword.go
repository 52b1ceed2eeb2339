package ats

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// stopWords filters common English words that add noise to keyword matching.
var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "must": true,
	"good": true, "able": true, "get": true, "set": true, "such": true,
	"years": true, "experience": true, "strong": true, "including": true,
}

const maxKeywordGaps = 20

// extractKeywords tokenizes text into lowercase keywords of 3+ runes.
// "+", "#" and "." count as word characters so c++, c# and node.js survive.
func extractKeywords(text string) map[string]bool {
	kw := make(map[string]bool)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= 3 && !stopWords[w] {
			kw[w] = true
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return kw
}

// keywordOverlap is the Jaccard overlap between resume and job keywords.
type keywordOverlap struct {
	Score    float64 // 0..1, two decimals
	Matching []string
	Missing  []string // job keywords absent from the resume, capped
}

func scoreKeywords(resumeText, jobText string) keywordOverlap {
	resumeKW := extractKeywords(resumeText)
	jobKW := extractKeywords(jobText)

	var out keywordOverlap
	inter := 0
	for kw := range jobKW {
		if resumeKW[kw] {
			inter++
			out.Matching = append(out.Matching, kw)
		} else {
			out.Missing = append(out.Missing, kw)
		}
	}

	union := len(resumeKW) + len(jobKW) - inter
	if union > 0 {
		out.Score = roundTo(float64(inter)/float64(union), 2)
	}

	sort.Strings(out.Matching)
	sort.Strings(out.Missing)
	if len(out.Missing) > maxKeywordGaps {
		out.Missing = out.Missing[:maxKeywordGaps]
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
