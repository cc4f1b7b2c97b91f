package intent

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Place is a resolved gazetteer entry. Specific is empty for area-only matches.
type Place struct {
	Area     string // canonical area key, e.g. "petaling_jaya"
	Specific string // canonical location key, e.g. "ss_2"
}

// Canonical returns the most specific canonical key for the place.
func (p Place) Canonical() string {
	if p.Specific != "" {
		return p.Specific
	}
	return p.Area
}

// gazetteerEntry maps a surface token to its place. Tokens are matched
// case-insensitively on word boundaries; multi-word tokens longer than
// fuzzyMinLen also match within edit distance 1 to absorb typos.
type gazetteerEntry struct {
	token string
	place Place
}

const fuzzyMinLen = 5

// Declaration order matters: specific locations come before their areas so
// that "SS 2 in Petaling Jaya" resolves the specific location.
var gazetteer = []gazetteerEntry{
	{"ss 2", Place{Area: "petaling_jaya", Specific: "ss_2"}},
	{"ss2", Place{Area: "petaling_jaya", Specific: "ss_2"}},
	{"ss 15", Place{Area: "petaling_jaya", Specific: "ss_15"}},
	{"ss15", Place{Area: "petaling_jaya", Specific: "ss_15"}},
	{"damansara utama", Place{Area: "petaling_jaya", Specific: "damansara_utama"}},
	{"klcc", Place{Area: "kuala_lumpur", Specific: "klcc"}},
	{"bukit bintang", Place{Area: "kuala_lumpur", Specific: "bukit_bintang"}},
	{"petaling jaya", Place{Area: "petaling_jaya"}},
	{"pj", Place{Area: "petaling_jaya"}},
	{"kuala lumpur", Place{Area: "kuala_lumpur"}},
	{"kl", Place{Area: "kuala_lumpur"}},
}

// MatchLocation scans a lowercased message for a known location token.
// Exact word-boundary matches take priority over fuzzy ones.
func MatchLocation(message string) (Place, bool) {
	words := tokenizeWords(message)

	for _, e := range gazetteer {
		if containsPhrase(words, strings.Fields(e.token)) {
			return e.place, true
		}
	}

	// Fuzzy pass: tolerate one edit on longer tokens ("damansra utama").
	for _, e := range gazetteer {
		if len(e.token) < fuzzyMinLen {
			continue
		}
		if fuzzyContainsPhrase(words, strings.Fields(e.token)) {
			return e.place, true
		}
	}

	return Place{}, false
}

// tokenizeWords splits a message into lowercase words with punctuation stripped.
func tokenizeWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// containsPhrase reports whether the phrase appears as consecutive words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(words) < len(phrase) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// fuzzyContainsPhrase matches the phrase as consecutive words allowing a total
// edit distance of 1 across the span.
func fuzzyContainsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(words) < len(phrase) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		span := strings.Join(words[i:i+len(phrase)], " ")
		if levenshtein.Distance(span, strings.Join(phrase, " "), nil) <= 1 {
			return true
		}
	}
	return false
}
