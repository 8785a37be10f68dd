// Package moderation screens user text against a static word list.
package moderation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirinyoku/ticketticket/internal/domain"
)

var defaultWords = []string{
	// english
	"fuck", "shit", "bitch", "asshole", "cunt", "retard",
	// japanese
	"死ね", "しね", "殺す", "ころす", "きもい", "キモい", "キモイ", "ブス", "クソ", "くそ", "ガイジ",
}

type Filter struct {
	re *regexp.Regexp
}

// New builds a filter matching any of words case-insensitively. ASCII words
// match as whole words only, also when stretched or inflected ("fuuuck",
// "shitty"), so "Scunthorpe" and "shiitake" pass.
func New(words ...string) *Filter {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		alts = append(alts, wordPattern(w))
	}

	if len(alts) == 0 {
		return &Filter{}
	}

	return &Filter{re: regexp.MustCompile(`(?i)(` + strings.Join(alts, "|") + `)`)}
}

func Default() *Filter {
	return New(defaultWords...)
}

const asciiSuffixes = `(?:s|es|ed|er|ers|ing|y)?`

func wordPattern(w string) string {
	if !isASCII(w) {
		return regexp.QuoteMeta(w)
	}

	var b strings.Builder
	b.WriteString(`\b`)
	for _, r := range w {
		b.WriteString(regexp.QuoteMeta(string(r)))
		b.WriteByte('+')
	}
	b.WriteString(asciiSuffixes)
	b.WriteString(`\b`)

	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func (f *Filter) Contains(s string) bool {
	if f == nil || f.re == nil {
		return false
	}
	return f.re.MatchString(s)
}

// Mask replaces every rune of each match with '*'.
func (f *Filter) Mask(s string) string {
	if f == nil || f.re == nil {
		return s
	}
	return f.re.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat("*", utf8.RuneCountInString(m))
	})
}

// Check returns a validation error for field when s contains a blocked word.
func (f *Filter) Check(field, s string) error {
	if f.Contains(s) {
		return domain.Invalid(field, "contains inappropriate language")
	}
	return nil
}
