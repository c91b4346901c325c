// Package context assembles the scene hint and neighboring-paragraph
// context windows fed to each translation prompt (§4.7). It reads
// already-completed tasks from the state store, so context always
// reflects exactly what has been durably committed.
package context

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lsilvatti/parallelbook/internal/core/splitter"
	"github.com/lsilvatti/parallelbook/internal/core/width"
	"github.com/lsilvatti/parallelbook/internal/document"
)

const (
	// PrevContextWidth is the display-width budget for preceding
	// context, counted backward from the task immediately before idx.
	PrevContextWidth = 500
	// NextContextWidth is the display-width budget for following
	// context, counted forward from the task immediately after idx.
	NextContextWidth = 200
	// Lookback caps how many prior tasks are scanned for context.
	Lookback = 8
	// Lookahead caps how many following tasks are scanned for context.
	Lookahead = 5
)

// TaskSource is the subset of store.Store this package depends on,
// kept narrow so callers can supply a fake in tests.
type TaskSource interface {
	Load(idx int) (*document.Task, error)
	Count() (int, error)
}

var contextWhitespace = regexp.MustCompile(`\s+`)

func normalize(text string) string {
	return strings.TrimSpace(contextWhitespace.ReplaceAllString(text, " "))
}

// Hint walks backward from idx up to Lookback tasks looking for the
// most recent non-empty response hint, stopping at the first gap
// (missing task, or a task with no response yet).
func Hint(src TaskSource, idx int) (string, error) {
	minIndex := idx - Lookback
	if minIndex < 0 {
		minIndex = 0
	}
	for i := idx - 1; i >= minIndex; i-- {
		task, err := src.Load(i)
		if err != nil {
			return "", fmt.Errorf("load task %d for hint: %w", i, err)
		}
		if task == nil || task.Response == nil {
			break
		}
		if task.Response.Hint != "" {
			return task.Response.Hint, nil
		}
	}
	return "", nil
}

// PrevContext collects up to Lookback preceding tasks' source
// sentences, most-recent-first, trimming to maxWidth display columns
// and returning them back in natural reading order.
func PrevContext(src TaskSource, idx int, maxWidth int) ([]string, error) {
	var all []string
	start := idx - Lookback
	if start < 0 {
		start = 0
	}
	for i := start; i < idx; i++ {
		task, err := src.Load(i)
		if err != nil {
			return nil, fmt.Errorf("load task %d for prev context: %w", i, err)
		}
		if task == nil {
			break
		}
		text := normalize(task.SourceText)
		all = append(all, splitter.Split(text)...)
	}
	reverse(all)
	picked := pickByWidth(all, maxWidth)
	reverse(picked)
	return picked, nil
}

// NextContext collects up to Lookahead following tasks' source
// sentences, in natural reading order, trimmed to maxWidth.
func NextContext(src TaskSource, idx int, maxWidth int) ([]string, error) {
	count, err := src.Count()
	if err != nil {
		return nil, fmt.Errorf("count tasks for next context: %w", err)
	}
	maxIndex := idx + Lookahead + 1
	if maxIndex > count {
		maxIndex = count
	}
	var all []string
	for i := idx + 1; i < maxIndex; i++ {
		task, err := src.Load(i)
		if err != nil {
			return nil, fmt.Errorf("load task %d for next context: %w", i, err)
		}
		if task == nil {
			break
		}
		text := normalize(task.SourceText)
		all = append(all, splitter.Split(text)...)
	}
	return pickByWidth(all, maxWidth), nil
}

func pickByWidth(sentences []string, maxWidth int) []string {
	var picked []string
	sum := 0
	for _, s := range sentences {
		if sum >= maxWidth {
			break
		}
		w := width.Width(s)
		if w > maxWidth {
			s = strings.TrimSpace(width.CutByWidth(s, maxWidth)) + "..."
			w = width.Width(s)
		}
		picked = append(picked, s)
		sum += w
	}
	return picked
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
