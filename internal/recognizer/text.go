package recognizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls post-processing of recognized text.
type CleanOptions struct {
	NormalizeForm      string // "NFC" (default), "NFKC", "NFD", "NFKD", "none"
	CollapseWhitespace bool
	RemoveControlChars bool
	ReplaceTypography  bool // curly quotes, dashes and odd spaces to ASCII
}

// DefaultCleanOptions returns the cleanup applied to card text.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		RemoveControlChars: true,
		ReplaceTypography:  true,
	}
}

var typography = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u201C", "\"",
	"\u201D", "\"",
	"\u201E", "\"",
	"\u2013", "-",
	"\u2014", "-",
	"\u00A0", " ",
	"\u2009", " ",
	"\u200B", "",
	"\uFEFF", "",
)

var wsRe = regexp.MustCompile(`\s+`)

// PostProcessText normalizes s and trims it.
func PostProcessText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	switch strings.ToUpper(opts.NormalizeForm) {
	case "NFC", "":
		s = norm.NFC.String(s)
	case "NFKC":
		s = norm.NFKC.String(s)
	case "NFD":
		s = norm.NFD.String(s)
	case "NFKD":
		s = norm.NFKD.String(s)
	}
	if opts.ReplaceTypography {
		s = typography.Replace(s)
	}
	if opts.RemoveControlChars {
		s = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) && !unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}
	if opts.CollapseWhitespace {
		s = wsRe.ReplaceAllString(s, " ")
	}
	return strings.TrimSpace(s)
}
