// Package flatten turns a document.Book into the ordered task list the
// engine drives through translation, and records the per-chapter
// raw_line metadata the rebuilder needs to restore chapter framing
// (§4.9).
package flatten

import (
	"fmt"

	"github.com/lsilvatti/parallelbook/internal/document"
)

// Meta carries book-level and per-chapter provenance that doesn't fit
// in a single task: the book id and each chapter's raw_line, indexed
// by chapter position.
type Meta struct {
	BookID           string
	ChapterRawLines  map[int]string
	SourceLanguage   string
	TargetLanguage   string
}

// Flatten walks book's title/author and every chapter's title and
// body, producing one Task per leaf element in source order.
func Flatten(book *document.Book) (Meta, []document.Task) {
	meta := Meta{BookID: book.ID, ChapterRawLines: map[int]string{}}
	if book.SourceLanguage != "" {
		meta.SourceLanguage = book.SourceLanguage
	}
	if book.TargetLanguage != "" {
		meta.TargetLanguage = book.TargetLanguage
	}

	var tasks []document.Task
	next := func(role document.Role, text string, attrs document.Attrs) {
		tasks = append(tasks, document.Task{
			Index:      len(tasks),
			Role:       role,
			SourceText: text,
			Attrs:      attrs,
		})
	}

	if book.Title != nil && book.Title.Source != "" {
		next(document.RoleBookTitle, book.Title.Source, document.Attrs{})
	}
	if book.Author != nil && book.Author.Source != "" {
		next(document.RoleBookAuthor, book.Author.Source, document.Attrs{})
	}

	for chapterIndex, chapter := range book.Chapters {
		if chapter.RawLine != "" {
			meta.ChapterRawLines[chapterIndex] = chapter.RawLine
		}
		if chapter.Title != nil && chapter.Title.Source != "" {
			next(document.RoleChapterTitle, chapter.Title.Source, document.Attrs{})
		}
		for _, block := range chapter.Body {
			role, err := block.PayloadRole()
			if err != nil {
				continue
			}
			attrs := document.Attrs{RawLine: block.RawLine, Concat: block.Concat}
			switch role {
			case document.RoleHeader:
				next(role, *block.Header, attrs)
			case document.RoleParagraph:
				next(role, *block.Paragraph, attrs)
			case document.RoleBlockquote:
				next(role, *block.Blockquote, attrs)
			case document.RoleCode:
				next(role, *block.Code, attrs)
			case document.RoleMacro:
				next(role, *block.Macro, attrs)
			case document.RoleList:
				for i, item := range block.List {
					itemAttrs := attrs
					if i > 0 {
						itemAttrs.Concat = true
					}
					next(role, item, itemAttrs)
				}
			case document.RoleTable:
				for i, row := range block.Table {
					rowAttrs := attrs
					if i > 0 {
						rowAttrs.Concat = true
					}
					next(role, row, rowAttrs)
				}
			}
		}
	}
	return meta, tasks
}

// Validate reports the first task whose completed response fails
// content validation, mirroring validate_tasks' sanity sweep before
// writing final output.
func Validate(tasks []document.Task, validate func(role document.Role, sourceText string, pairs []document.TranslationPair) bool) error {
	for _, t := range tasks {
		if t.Role == document.RoleMacro || t.Role == document.RoleCode || t.Response == nil {
			continue
		}
		pairs, err := t.Response.Pairs()
		if err != nil {
			continue
		}
		if !validate(t.Role, t.SourceText, pairs) {
			return fmt.Errorf("invalid task content at index %d", t.Index)
		}
	}
	return nil
}
