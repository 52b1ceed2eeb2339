package ats

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var htmlTag = regexp.MustCompile(`(?i)<(p|div|ul|ol|li|br|h[1-6]|span|strong|b|em|table|section)\b[^>]*>`)

// NormalizeJobDescription trims the job description and converts pasted HTML
// job posts to markdown.
func NormalizeJobDescription(jd string) string {
	jd = strings.TrimSpace(jd)
	if jd == "" || !htmlTag.MatchString(jd) {
		return jd
	}
	md, err := htmltomarkdown.ConvertString(jd)
	if err != nil || strings.TrimSpace(md) == "" {
		return jd
	}
	return strings.TrimSpace(md)
}
