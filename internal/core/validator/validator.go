// Package validator implements the structural and lexical checks a
// model response must pass before it is persisted (§4.4).
package validator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/lsilvatti/parallelbook/internal/document"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")))
}

// quotationMarks is the set of codepoints treated as quotation marks
// by invariant 2 / §4.4 check (c). Go's regexp package has no
// \p{Quotation_Mark} class, so the set is enumerated explicitly.
var quotationMarks = map[rune]bool{
	'"': true, '\'': true,
	'“': true, '”': true, '‘': true, '’': true,
	'«': true, '»': true, '‹': true, '›': true,
	'„': true, '‚': true,
	'「': true, '」': true, '『': true, '』': true,
}

func extractMarks(text string) string {
	var b strings.Builder
	for _, r := range text {
		if quotationMarks[r] {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractVerticals(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r == '|' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// letterRunRe matches a run of two or more ASCII letters followed by
// spaces and a run of three or more.
var letterRunRe = regexp.MustCompile(`[A-Za-z]{2,} +[A-Za-z]{3,}`)

// MaxDiffRatio is the excessive-diff threshold for the parallel-book
// pipeline (§9 open question c); legacy mode uses 0.30 instead.
const MaxDiffRatio = 0.10

// LegacyMaxDiffRatio is the looser threshold used by the older
// translation engine, kept for compatibility with legacy state files.
const LegacyMaxDiffRatio = 0.30

// ValidateContent runs the five translation-pair checks of §4.4
// against a candidate content array for role/sourceText.
func ValidateContent(role document.Role, sourceText string, content []document.TranslationPair, maxDiffRatio float64) bool {
	joint := make([]string, len(content))
	for i, pair := range content {
		joint[i] = pair.Source
	}
	jointText := strings.Join(joint, " ")

	// The first 8 and last 4 non-space characters must agree.
	edges := func(text string) (string, string) {
		r := []rune(strings.Join(strings.Fields(text), ""))
		return string(r[:min(len(r), 8)]), string(r[len(r)-min(len(r), 4):])
	}
	origHead, origTail := edges(sourceText)
	procHead, procTail := edges(jointText)
	if origHead != procHead || origTail != procTail {
		return false
	}

	normOrig := normalizeText(sourceText)
	normProc := normalizeText(jointText)

	distance := levenshtein.ComputeDistance(normOrig, normProc)
	length := (float64(len(normOrig)) + float64(len(normProc))) / 2
	if length < 1 {
		length = 1
	}
	if float64(distance)/length > maxDiffRatio {
		return false
	}

	if extractMarks(sourceText) != extractMarks(jointText) {
		return false
	}

	if role == document.RoleTable {
		if extractVerticals(sourceText) != extractVerticals(jointText) {
			return false
		}
	}

	for _, pair := range content {
		if letterRunRe.MatchString(pair.Source) && strings.TrimSpace(pair.Target) == "" {
			return false
		}
	}

	return true
}

// LatinLetterCount counts Latin-script letters in text, used to
// decide whether a task is eligible for an "intact" synthetic
// response (fewer than two Latin letters means it isn't English).
func LatinLetterCount(text string) int {
	count := 0
	for _, r := range text {
		if unicode.Is(unicode.Latin, r) && unicode.IsLetter(r) {
			count++
		}
	}
	return count
}

// ValidateSentenceContent recursively validates an analysis tree node:
// each node must be tagged with the expected format, have non-empty
// text/pattern, and elements whose members have string type/text.
func ValidateSentenceContent(s *document.Sentence) bool {
	if s.Format != "sentence" {
		return false
	}
	if strings.TrimSpace(s.Text) == "" || s.Pattern == "" {
		return false
	}
	for _, e := range s.Elements {
		if e.Type == "" || strings.TrimSpace(e.Text) == "" {
			return false
		}
	}
	for _, c := range s.Subclauses {
		if strings.TrimSpace(c.Text) == "" || c.Pattern == "" {
			return false
		}
		for _, e := range c.Elements {
			if e.Type == "" || strings.TrimSpace(e.Text) == "" {
				return false
			}
		}
	}
	for i := range s.Subsentences {
		if !ValidateSentenceContent(&s.Subsentences[i]) {
			return false
		}
	}
	return true
}

// ReconcilePattern corrects a pattern to match the multiset of
// element types, per the precedence table in §4.4: presence of O
// with C → SVOC; two O → SVOO; O only → SVO; C only → SVC; else SV;
// a clause with no V element is left unchanged.
func ReconcilePattern(pattern document.Pattern, elements []document.Element) document.Pattern {
	counts := document.ElementTypeCounts(elements)
	if counts[document.ElementV] == 0 {
		return pattern
	}
	hasO := counts[document.ElementO] > 0
	hasC := counts[document.ElementC] > 0
	switch {
	case hasO && hasC:
		return document.PatternSVOC
	case counts[document.ElementO] >= 2:
		return document.PatternSVOO
	case hasO:
		return document.PatternSVO
	case hasC:
		return document.PatternSVC
	default:
		return document.PatternSV
	}
}
