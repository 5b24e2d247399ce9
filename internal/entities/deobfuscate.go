package entities

import (
	"regexp"
)

// Scammers defang their own links to slip past naive filters: hxxps://,
// example[.]com, user[at]domain. The deobfuscation pass rewrites those forms
// on a scratch copy so the extraction regexes see plain text; the originals
// are kept for the Raw fields.

var (
	hxxpRE = regexp.MustCompile(`(?i)\bhxxp(s?)://`)

	// Bracketed tokens — bad[.]com, bad {dot} com, user(at)domain — with any
	// surrounding whitespace absorbed into the replacement.
	dotTokenRE = regexp.MustCompile(`(?i)[ \t]*[\[({][ \t]*(?:dot|\.)[ \t]*[\])}][ \t]*`)
	atTokenRE  = regexp.MustCompile(`(?i)[ \t]*[\[({][ \t]*at[ \t]*[\])}][ \t]*`)

	spacedDotRE = regexp.MustCompile(`(?i)(\w)\s+dot\s+(\w)`)
	spacedAtRE  = regexp.MustCompile(`(?i)(\w)\s+at\s+(\w+\s*(?:dot|\.)\s*\w)`)

	// Zero-width and soft-hyphen characters used to break up strings.
	zeroWidthRE = regexp.MustCompile("[\u200b\u200c\u200d\u2060\ufeff\u00ad]")
)

// Deobfuscate reverses common character-level obfuscations.
func Deobfuscate(text string) string {
	out := hxxpRE.ReplaceAllString(text, "http$1://")

	out = atTokenRE.ReplaceAllString(out, "@")
	out = dotTokenRE.ReplaceAllString(out, ".")

	out = spacedDotRE.ReplaceAllString(out, "$1.$2")
	out = spacedAtRE.ReplaceAllString(out, "$1@$2")
	// The at-rewrite can leave a "dot" between domain labels.
	out = spacedDotRE.ReplaceAllString(out, "$1.$2")

	out = zeroWidthRE.ReplaceAllString(out, "")
	return out
}
