// Package classifier routes free ticket text to a department using weighted
// keyword tables. It is a pure suggestion engine: callers debounce it and
// must never let it overwrite a manual department choice.
package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const nameMentionBonus = 6

// Guess scores the supplied departments against title+description and
// returns the strictly best positive match, or nil when nothing scores.
// Ties keep the first department encountered.
func Guess(title, description string, departments []domain.Department) *domain.Department {
	flat, tokens := normalizeText(title + " " + description)
	if flat == "" {
		return nil
	}

	var best *domain.Department
	bestScore := 0
	for i := range departments {
		dept := &departments[i]
		score := scoreDepartment(dept, flat, tokens)
		if score > bestScore {
			bestScore = score
			best = dept
		}
	}
	return best
}

func scoreDepartment(dept *domain.Department, flat string, tokens map[string]struct{}) int {
	name := normalizeName(dept.Name)
	score := 0

	if nameMentioned(name, flat, tokens) {
		score += nameMentionBonus
	}

	fam, ok := familyForDepartment(name)
	if !ok {
		return score
	}
	for _, tier := range keywordTables[fam] {
		for _, keyword := range tier.keywords {
			score += keywordScore(keyword, tier.weight, flat, tokens)
		}
	}
	return score
}

// keywordScore applies the tier rules: multi-word keywords count double on a
// substring hit; single words score full weight on an exact token and a
// reduced weight on a bare singular/plural variant.
func keywordScore(keyword string, weight int, flat string, tokens map[string]struct{}) int {
	if strings.Contains(keyword, " ") {
		if strings.Contains(flat, keyword) {
			return weight * 2
		}
		return 0
	}
	if _, ok := tokens[keyword]; ok {
		return weight
	}
	variant := max(1, weight-1)
	if _, ok := tokens[keyword+"s"]; ok {
		return variant
	}
	if strings.HasSuffix(keyword, "s") {
		if _, ok := tokens[strings.TrimSuffix(keyword, "s")]; ok {
			return variant
		}
	}
	return 0
}

func nameMentioned(name, flat string, tokens map[string]struct{}) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, " ") {
		return strings.Contains(flat, name)
	}
	_, ok := tokens[name]
	return ok
}

var markStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lowercases, strips diacritics and punctuation, and collapses
// whitespace, returning both the flattened string and its token set.
func normalizeText(text string) (string, map[string]struct{}) {
	lowered := strings.ToLower(text)
	stripped, _, err := transform.String(markStripper, lowered)
	if err != nil {
		stripped = lowered
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, stripped)

	fields := strings.Fields(cleaned)
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return strings.Join(fields, " "), tokens
}

// normalizeName treats punctuation inside department names ("T.I") as glue
// rather than separators so the name survives as a single token.
func normalizeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	stripped, _, err := transform.String(markStripper, lowered)
	if err != nil {
		stripped = lowered
	}
	var b strings.Builder
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
