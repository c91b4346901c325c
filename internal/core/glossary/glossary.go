// Package glossary scans a book's source paragraphs for recurring
// capitalized entities (character names, places, honorific-marked
// names) so they can be surfaced as a --extra-hint for the translation
// ladder, keeping a character's name rendered consistently across
// every chapter instead of drifting between runs or models.
package glossary

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Entity represents a detected named entity
type Entity struct {
	Text       string
	Type       EntityType
	Confidence float64 // 0.0 - 1.0
	Count      int     // How many times it appears
}

// EntityType categorizes the kind of entity
type EntityType string

const (
	EntityName  EntityType = "Name"  // Character names
	EntityPlace EntityType = "Place" // Location names
	EntityTitle EntityType = "Title" // Titles (honorifics, job titles)
)

// Scanner extracts candidate glossary entities from a book's source
// paragraphs.
type Scanner struct {
	// Common words to exclude (articles, prepositions, etc.)
	stopWords map[string]bool
	// Honorifics that mark a preceding word as a character name, kept
	// for translated light-novel-style source text that carries
	// romanized Japanese honorifics in the English original.
	honorifics []string
	// Title patterns
	titlePatterns []*regexp.Regexp
}

// NewScanner creates a new scanner with default configuration.
func NewScanner() *Scanner {
	s := &Scanner{
		stopWords: make(map[string]bool),
		honorifics: []string{
			"-san", "-kun", "-chan", "-sama", "-sensei", "-senpai", "-dono",
			"-tan", "-han", "-shi",
		},
		titlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(captain|commander|lord|lady|king|queen|prince|princess|chief|master|doctor|professor|general|admiral|marshal)`),
		},
	}

	// Common English stop words
	commonStopWords := []string{
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "as", "is", "was", "are", "were", "been",
		"be", "have", "has", "had", "do", "does", "did", "will", "would",
		"could", "should", "may", "might", "must", "shall", "can", "need",
		"this", "that", "these", "those", "it", "its", "he", "she", "they",
		"we", "you", "i", "me", "my", "your", "his", "her", "their", "our",
		"what", "which", "who", "whom", "where", "when", "why", "how",
		"all", "each", "every", "both", "few", "more", "most", "other",
		"some", "such", "no", "nor", "not", "only", "own", "same", "so",
		"than", "too", "very", "just", "also", "now", "then", "here", "there",
		"if", "else", "while", "because", "although", "though", "unless",
		"until", "before", "after", "above", "below", "between", "into",
		"through", "during", "over", "under", "again", "further", "once",
		// Common verbs in dialogue
		"said", "says", "say", "tell", "told", "think", "know", "see", "look",
		"go", "going", "went", "gone", "come", "came", "take", "took", "make",
		"made", "get", "got", "give", "gave", "let", "want", "like",
	}

	for _, w := range commonStopWords {
		s.stopWords[strings.ToLower(w)] = true
	}

	return s
}

// ScanParagraphs extracts candidate glossary entities from a book's
// source paragraphs, in reading order.
func (s *Scanner) ScanParagraphs(paragraphs []string) []Entity {
	entityCounts := make(map[string]*Entity)

	for _, p := range paragraphs {
		s.extractFromText(p, entityCounts)
	}

	// Convert map to slice and sort by count
	entities := make([]Entity, 0, len(entityCounts))
	for _, e := range entityCounts {
		// Only include entities that appear multiple times or have high confidence
		if e.Count >= 2 || e.Confidence >= 0.8 {
			entities = append(entities, *e)
		}
	}

	// Sort by count (most frequent first)
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Count > entities[j].Count
	})

	return entities
}

// extractFromText processes a single paragraph of source text.
func (s *Scanner) extractFromText(text string, entities map[string]*Entity) {
	s.extractCapitalizedEntities(text, entities)
	s.extractHonorificNames(text, entities)
}

// extractCapitalizedEntities finds capitalized words that might be names
func (s *Scanner) extractCapitalizedEntities(text string, entities map[string]*Entity) {
	// Pattern for capitalized words (2+ chars starting with uppercase)
	words := strings.Fields(text)

	for i, word := range words {
		// Clean punctuation from word
		cleanWord := s.cleanPunctuation(word)
		if len(cleanWord) < 2 {
			continue
		}

		// Check if word starts with uppercase
		runes := []rune(cleanWord)
		if !unicode.IsUpper(runes[0]) {
			continue
		}

		// Skip if it's a stop word
		if s.stopWords[strings.ToLower(cleanWord)] {
			continue
		}

		// Skip if it's the first word of the paragraph (common false positive)
		if i == 0 {
			// Still include if it looks like a proper noun (rare word pattern)
			if !s.looksLikeProperNoun(cleanWord) {
				continue
			}
		}

		// Calculate confidence based on word characteristics
		confidence := s.calculateConfidence(cleanWord, i, len(words))

		// Normalize the key
		key := strings.ToLower(cleanWord)

		if existing, ok := entities[key]; ok {
			existing.Count++
			// Update confidence if higher
			if confidence > existing.Confidence {
				existing.Confidence = confidence
			}
		} else {
			entities[key] = &Entity{
				Text:       cleanWord,
				Type:       EntityName, // Default to name
				Confidence: confidence,
				Count:      1,
			}
		}
	}
}

// extractHonorificNames finds names followed by Japanese honorifics
func (s *Scanner) extractHonorificNames(text string, entities map[string]*Entity) {
	for _, hon := range s.honorifics {
		pattern := regexp.MustCompile(`([A-Z][a-z]+)` + regexp.QuoteMeta(hon))
		matches := pattern.FindAllStringSubmatch(text, -1)
		for _, match := range matches {
			if len(match) >= 2 {
				name := match[1]
				key := strings.ToLower(name)

				if existing, ok := entities[key]; ok {
					existing.Count++
					existing.Confidence = 0.95 // High confidence for honorific names
				} else {
					entities[key] = &Entity{
						Text:       name,
						Type:       EntityName,
						Confidence: 0.95,
						Count:      1,
					}
				}
			}
		}
	}
}

// cleanPunctuation removes leading/trailing punctuation from a word
func (s *Scanner) cleanPunctuation(word string) string {
	runes := []rune(word)
	start := 0
	end := len(runes)

	// Remove leading punctuation
	for start < end && !unicode.IsLetter(runes[start]) && !unicode.IsNumber(runes[start]) {
		start++
	}

	// Remove trailing punctuation
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsNumber(runes[end-1]) {
		end--
	}

	if start >= end {
		return ""
	}

	return string(runes[start:end])
}

// looksLikeProperNoun checks if a word has characteristics of a proper noun
func (s *Scanner) looksLikeProperNoun(word string) bool {
	// Japanese-style names often have specific patterns
	// Names with "ou", "uu", etc.
	if strings.Contains(word, "ou") || strings.Contains(word, "uu") || strings.Contains(word, "ii") {
		return true
	}

	// Names ending in common Japanese suffixes
	suffixes := []string{"ro", "ko", "mi", "ki", "shi", "ta", "da", "na", "ru", "ya"}
	lowerWord := strings.ToLower(word)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lowerWord, suffix) {
			return true
		}
	}

	// Multi-syllable capitalized words are likely proper nouns
	vowels := 0
	for _, r := range strings.ToLower(word) {
		if r == 'a' || r == 'e' || r == 'i' || r == 'o' || r == 'u' {
			vowels++
		}
	}
	return vowels >= 2
}

// calculateConfidence determines how likely a word is to be a named entity
func (s *Scanner) calculateConfidence(word string, position, totalWords int) float64 {
	confidence := 0.5 // Base confidence

	// Longer words are more likely to be names
	if len(word) >= 4 {
		confidence += 0.1
	}
	if len(word) >= 6 {
		confidence += 0.1
	}

	// Not first word in sentence
	if position > 0 {
		confidence += 0.2
	}

	// Has characteristics of proper noun
	if s.looksLikeProperNoun(word) {
		confidence += 0.2
	}

	// Cap at 1.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	return confidence
}

// MergeWithProjectGlossary merges detected entities with a project
// glossary; project glossary entries take precedence over detected
// ones of the same source term.
func MergeWithProjectGlossary(entities []Entity, projectGlossary map[string]string) map[string]string {
	merged := make(map[string]string)

	for _, e := range entities {
		if e.Confidence >= 0.7 {
			merged[e.Text] = e.Text
		}
	}

	for orig, trans := range projectGlossary {
		merged[orig] = trans
	}

	return merged
}

// Hint renders the first max detected names whose confidence is at
// least 0.7, in the order given, as an --extra-hint line instructing the translation ladder to keep their
// romanization consistent across the whole book.
func Hint(entities []Entity, max int) string {
	var names []string
	for _, e := range entities {
		if e.Type != EntityName || e.Confidence < 0.7 {
			continue
		}
		names = append(names, e.Text)
		if len(names) >= max {
			break
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "登場人物名の対訳を一貫させてください: " + strings.Join(names, ", ")
}
