// Package splitter segments English text into sentences, protecting
// common abbreviations and quotation boundaries. The rules are
// deterministic so prompts and context windows built from them are
// byte-reproducible across runs.
package splitter

import "regexp"

const sentinel = "\x00SEP\x00"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	// Abbreviations whose trailing period must not be treated as a
	// sentence terminator.
	abbrevPeriod = regexp.MustCompile(`(?i)\b(mrs|mr|ms|jr|dr|prof|st|etc|i\.e|a\.m|p\.m|vs)\.`)
	// Single uppercase letter followed by a period, e.g. initials
	// like "J." in "J. Smith".
	initialPeriod = regexp.MustCompile(`(\W)([A-Z])\.`)

	// A sentence-terminal run followed by whitespace and a capital
	// letter starts a new sentence.
	terminalBeforeCapital = regexp.MustCompile(`([a-zA-Z])([.!?;]+)(\s+)([A-Z])`)
	// A forced break after 100+ interior characters ending in a
	// terminator, so very long run-on clauses still get split.
	longRunTerminal = regexp.MustCompile(`([^.!?;{}]{100,})([.!?;]+)(\s+)`)
	// Break before an opening quote/bracket that follows a terminator.
	// The canonical opening-bracket class (§9 open question a) also
	// includes "*", used for markdown-style emphasis openers.
	beforeOpenQuote = regexp.MustCompile(`([.!?;]+)(\s+)(["“‘*\(\[\{])`)
	// Break immediately after a closing quote/bracket that follows a
	// terminator.
	afterCloseQuote = regexp.MustCompile(`([.!?;]+["”’\)\]\}])`)

	periodSentinel = regexp.MustCompile(`__PERIOD__`)
	sepSplitter    = regexp.MustCompile(sentinel)
)

// Split segments text into a finite ordered sequence of non-empty,
// trimmed sentences.
func Split(text string) []string {
	norm := whitespaceRun.ReplaceAllString(text, " ")
	norm = abbrevPeriod.ReplaceAllString(norm, "${1}__PERIOD__")
	norm = initialPeriod.ReplaceAllString(norm, "${1}${2}__PERIOD__")
	norm = terminalBeforeCapital.ReplaceAllString(norm, "${1}${2}"+sentinel+"${4}")
	norm = longRunTerminal.ReplaceAllString(norm, "${1}${2}"+sentinel)
	norm = beforeOpenQuote.ReplaceAllString(norm, "${1}${2}"+sentinel+"${3}")
	norm = afterCloseQuote.ReplaceAllString(norm, "${1}"+sentinel)
	norm = periodSentinel.ReplaceAllString(norm, ".")

	var sentences []string
	for _, part := range sepSplitter.Split(norm, -1) {
		trimmed := trimSpace(part)
		if trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
