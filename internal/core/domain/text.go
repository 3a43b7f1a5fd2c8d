package domain

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText normalizes raw email content before classification: unifies line
// endings, strips the BOM and drops non-printable characters, keeping
// newlines and tabs.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\ufeff", "")

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || (r >= 0x20 && r < 0x7f) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// FlattenText collapses a multi-line text into a single display line. With
// htmlBreaks, newlines become <br/> tags instead, for HTML surfaces that
// render the explanation or suggested response.
func FlattenText(text string, htmlBreaks bool) string {
	breakStr := " "
	if htmlBreaks {
		breakStr = "<br/>"
	}

	text = strings.ReplaceAll(text, "\\n", breakStr)
	text = strings.ReplaceAll(text, "\n", breakStr)
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, "•", "-")

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// PersonalizeGreeting swaps the placeholder greeting for the customer's real
// name when a profile was found.
func PersonalizeGreeting(text, customerName string) string {
	if customerName == "" || customerName == "Valued Customer" {
		return text
	}
	text = strings.ReplaceAll(text, "Dear Valued Customer,", "Dear "+customerName+",")
	return strings.ReplaceAll(text, "Dear Valued Customer", "Dear "+customerName)
}
