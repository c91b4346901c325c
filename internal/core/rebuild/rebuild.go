// Package rebuild walks a completed task list back into the
// translated book document, collapsing title/header responses into
// single pairs, regrouping list/table items via the concat flag, and
// splitting table cells back out on "|" (§4.10).
package rebuild

import (
	"fmt"
	"strings"

	"github.com/lsilvatti/parallelbook/internal/core/flatten"
	"github.com/lsilvatti/parallelbook/internal/core/width"
	"github.com/lsilvatti/parallelbook/internal/document"
)

// Pair is one aligned source/target sentence or table cell in the
// final output document.
type Pair struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Error  bool   `json:"error,omitempty"`
	Intact bool   `json:"intact,omitempty"`
}

// MacroRecord is a rebuilt macro directive.
type MacroRecord struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

// CodeRecord is a rebuilt code block.
type CodeRecord struct {
	ID   string  `json:"id"`
	Code *string `json:"code"`
}

// OutputBlock is one rebuilt body element of a chapter. Exactly one
// payload field is set, mirroring document.Block.
type OutputBlock struct {
	RawLine string `json:"raw_line,omitempty"`

	Header     *Pair        `json:"header,omitempty"`
	Paragraph  []Pair       `json:"paragraph,omitempty"`
	Blockquote []Pair       `json:"blockquote,omitempty"`
	List       []Pair       `json:"list,omitempty"`
	Table      [][]Pair     `json:"table,omitempty"`
	Macro      *MacroRecord `json:"macro,omitempty"`
	Code       *CodeRecord  `json:"code,omitempty"`
}

// OutputChapter is a rebuilt chapter.
type OutputChapter struct {
	Title   *Pair         `json:"title,omitempty"`
	RawLine string        `json:"raw_line,omitempty"`
	Body    []OutputBlock `json:"body"`
}

// Output is the rebuilt, fully translated book.
type Output struct {
	ID             string          `json:"id,omitempty"`
	SourceLanguage string          `json:"source_language"`
	TargetLanguage string          `json:"target_language"`
	Title          *Pair           `json:"title,omitempty"`
	Author         *Pair           `json:"author,omitempty"`
	Chapters       []OutputChapter `json:"chapters,omitempty"`
	Cost           float64         `json:"cost"`
}

func recordID(index, seq int) string {
	return fmt.Sprintf("%05d-%03d", index, seq)
}

// textPairs decodes a task's response content into one Pair per
// aligned sentence, or a single Pair joining all of them when concat
// is true.
func textPairs(t *document.Task, concat bool) ([]Pair, error) {
	content, err := t.Response.Pairs()
	if err != nil {
		return nil, err
	}
	hasError := t.Response.Error
	hasIntact := t.Response.Intact

	pairs := make([]Pair, len(content))
	for i, c := range content {
		pairs[i] = Pair{ID: recordID(t.Index, i), Source: c.Source, Target: c.Target, Error: hasError, Intact: hasIntact}
	}
	if !concat || len(pairs) == 0 {
		return pairs, nil
	}

	sources := make([]string, len(pairs))
	targets := make([]string, len(pairs))
	for i, p := range pairs {
		sources[i] = p.Source
		targets[i] = p.Target
	}
	return []Pair{{
		ID:     recordID(t.Index, 0),
		Source: strings.Join(sources, " "),
		Target: strings.Join(targets, " "),
		Error:  hasError,
		Intact: hasIntact,
	}}, nil
}

func macroRecord(t *document.Task) (MacroRecord, error) {
	m, err := t.Response.Macro()
	if err != nil {
		return MacroRecord{}, err
	}
	return MacroRecord{ID: recordID(t.Index, 0), Name: m.Name, Value: m.Value}, nil
}

func codeRecord(t *document.Task) (CodeRecord, error) {
	m, err := t.Response.Macro()
	if err != nil {
		return CodeRecord{}, err
	}
	return CodeRecord{ID: recordID(t.Index, 0), Code: m.Value}, nil
}

func tableCells(index int, item Pair) []Pair {
	splitRow := func(text string) []string {
		text = strings.TrimSpace(text)
		text = strings.TrimPrefix(text, "|")
		text = strings.TrimSuffix(strings.TrimSpace(text), "|")
		cells := strings.Split(text, "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		return cells
	}
	srcCells := splitRow(item.Source)
	trgCells := splitRow(item.Target)
	for len(srcCells) < len(trgCells) {
		srcCells = append(srcCells, "")
	}
	for len(trgCells) < len(srcCells) {
		trgCells = append(trgCells, "")
	}
	cells := make([]Pair, len(srcCells))
	for i := range srcCells {
		cells[i] = Pair{ID: recordID(index, i), Source: srcCells[i], Target: trgCells[i]}
	}
	return cells
}

// Rebuild walks tasks (stopping at the first one without a response)
// and reassembles them into the translated book. meta supplies the
// book id and per-chapter raw_line recorded by Flatten.
func Rebuild(meta flatten.Meta, tasks []document.Task) (*Output, error) {
	out := &Output{
		ID:             meta.BookID,
		SourceLanguage: "en",
		TargetLanguage: "ja",
	}
	if meta.SourceLanguage != "" {
		out.SourceLanguage = meta.SourceLanguage
	}
	if meta.TargetLanguage != "" {
		out.TargetLanguage = meta.TargetLanguage
	}

	var live []document.Task
	for _, t := range tasks {
		if t.Response == nil {
			break
		}
		live = append(live, t)
	}

	done := make([]bool, len(live))
	totalCost := 0.0

	for seq, t := range live {
		if done[seq] {
			continue
		}
		done[seq] = true
		totalCost += t.Response.Cost

		switch t.Role {
		case document.RoleBookTitle:
			if out.Title == nil {
				pairs, err := textPairs(&t, true)
				if err != nil {
					return nil, fmt.Errorf("rebuild book title at %d: %w", t.Index, err)
				}
				if len(pairs) > 0 {
					out.Title = &pairs[0]
				}
			}
		case document.RoleBookAuthor:
			if out.Author == nil {
				pairs, err := textPairs(&t, true)
				if err != nil {
					return nil, fmt.Errorf("rebuild book author at %d: %w", t.Index, err)
				}
				if len(pairs) > 0 {
					out.Author = &pairs[0]
				}
			}
		case document.RoleChapterTitle:
			pairs, err := textPairs(&t, true)
			if err != nil {
				return nil, fmt.Errorf("rebuild chapter title at %d: %w", t.Index, err)
			}
			var title *Pair
			if len(pairs) > 0 {
				title = &pairs[0]
			}
			out.Chapters = append(out.Chapters, OutputChapter{Title: title})
		default:
			if len(out.Chapters) == 0 {
				out.Chapters = append(out.Chapters, OutputChapter{})
			}
			chapter := &out.Chapters[len(out.Chapters)-1]
			rawLine := t.Attrs.RawLine

			switch t.Role {
			case document.RoleParagraph:
				pairs, err := textPairs(&t, false)
				if err != nil {
					return nil, fmt.Errorf("rebuild paragraph at %d: %w", t.Index, err)
				}
				chapter.Body = append(chapter.Body, OutputBlock{RawLine: rawLine, Paragraph: pairs})

			case document.RoleBlockquote:
				pairs, err := textPairs(&t, false)
				if err != nil {
					return nil, fmt.Errorf("rebuild blockquote at %d: %w", t.Index, err)
				}
				chapter.Body = append(chapter.Body, OutputBlock{RawLine: rawLine, Blockquote: pairs})

			case document.RoleHeader:
				pairs, err := textPairs(&t, true)
				if err != nil {
					return nil, fmt.Errorf("rebuild header at %d: %w", t.Index, err)
				}
				var header *Pair
				if len(pairs) > 0 {
					header = &pairs[0]
				}
				chapter.Body = append(chapter.Body, OutputBlock{RawLine: rawLine, Header: header})

			case document.RoleList, document.RoleTable:
				var items []Pair
				nextSeq := seq
				for nextSeq < len(live) {
					next := live[nextSeq]
					if nextSeq > seq {
						if next.Role != t.Role || !next.Attrs.Concat {
							break
						}
					}
					pairs, err := textPairs(&next, true)
					if err != nil {
						return nil, fmt.Errorf("rebuild %s item at %d: %w", t.Role, next.Index, err)
					}
					if len(pairs) > 0 {
						items = append(items, pairs[0])
					}
					done[nextSeq] = true
					nextSeq++
				}
				if t.Role == document.RoleTable {
					var rows [][]Pair
					for i, item := range items {
						cells := tableCells(t.Index+i, item)
						if len(cells) > 0 {
							rows = append(rows, cells)
						}
					}
					chapter.Body = append(chapter.Body, OutputBlock{RawLine: rawLine, Table: rows})
				} else {
					chapter.Body = append(chapter.Body, OutputBlock{RawLine: rawLine, List: items})
				}

			case document.RoleMacro:
				rec, err := macroRecord(&t)
				if err != nil {
					return nil, fmt.Errorf("rebuild macro at %d: %w", t.Index, err)
				}
				chapter.Body = append(chapter.Body, OutputBlock{RawLine: rawLine, Macro: &rec})

			case document.RoleCode:
				rec, err := codeRecord(&t)
				if err != nil {
					return nil, fmt.Errorf("rebuild code at %d: %w", t.Index, err)
				}
				chapter.Body = append(chapter.Body, OutputBlock{RawLine: rawLine, Code: &rec})
			}
		}
	}

	for i := range out.Chapters {
		if rawLine, ok := meta.ChapterRawLines[i]; ok {
			out.Chapters[i].RawLine = rawLine
		}
	}
	out.Cost = round3(totalCost)
	return out, nil
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

// PreviewText trims source text to a display-friendly width, used for
// diagnostic logging when a stored task's text diverges unexpectedly
// from what the caller expected at that index.
func PreviewText(text string) string {
	return width.CutByWidth(text, 64)
}
