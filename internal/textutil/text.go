// Package textutil provides text processing shared by collectors and
// pipeline stages: HTML stripping, language detection and truncation.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/niseko-gazet/haystack/internal/types"
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// skipTags are elements whose text content is never article text.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
}

// blockTags get a newline appended when closed so paragraphs survive
// tag stripping.
var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLToText strips tags from an HTML fragment and returns readable
// plain text with collapsed whitespace.
func HTMLToText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	var b strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skipTags[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipTags[tag] && skipDepth > 0 {
				skipDepth--
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if blockTags[string(name)] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}

	text := b.String()
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// isCJK reports whether a rune falls in the character ranges used for
// Japanese text: CJK unified ideographs, hiragana, katakana and
// half-width katakana.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	case r >= 0x3040 && r <= 0x309F: // hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // katakana
		return true
	case r >= 0xFF65 && r <= 0xFF9F: // half-width katakana
		return true
	}
	return false
}

// DetectLanguage classifies text as Japanese or English. The 20%
// cutoff catches mixed-language articles from bilingual sources.
func DetectLanguage(text string) string {
	if text == "" {
		return types.LangEnglish
	}

	cjk, total := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJK(r) {
			cjk++
		}
	}

	if total == 0 {
		return types.LangEnglish
	}
	if float64(cjk)/float64(total) > 0.2 {
		return types.LangJapanese
	}
	return types.LangEnglish
}

// HasCJK reports whether the text contains any Japanese script at
// all. Used as a cheap language proxy for stored titles.
func HasCJK(text string) bool {
	for _, r := range text {
		if r >= 0x3040 && r <= 0x9FFF {
			return true
		}
	}
	return false
}

// Truncate limits text to max runes, appending an ellipsis when it
// had to cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// CleanWhitespace collapses all whitespace runs to single spaces.
func CleanWhitespace(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
