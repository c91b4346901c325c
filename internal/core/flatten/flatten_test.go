package flatten

import (
	"testing"

	"github.com/lsilvatti/parallelbook/internal/document"
)

func strPtr(s string) *string { return &s }

func sampleBook() *document.Book {
	header := "Chapter Summary"
	paragraph := "He loved linguistics."
	return &document.Book{
		ID:    "book-1",
		Title: &document.TitleField{Source: "Example Book"},
		Chapters: []document.Chapter{
			{
				Title:   &document.TitleField{Source: "Chapter One"},
				RawLine: "## Chapter One",
				Body: []document.Block{
					{Header: &header},
					{Paragraph: &paragraph},
					{List: []string{"first item", "second item"}},
					{Table: []string{"| A | 1 |", "| B | 2 |"}},
				},
			},
		},
	}
}

func TestFlattenOrderAndRoles(t *testing.T) {
	meta, tasks := Flatten(sampleBook())

	wantRoles := []document.Role{
		document.RoleBookTitle,
		document.RoleChapterTitle,
		document.RoleHeader,
		document.RoleParagraph,
		document.RoleList,
		document.RoleList,
		document.RoleTable,
		document.RoleTable,
	}
	if len(tasks) != len(wantRoles) {
		t.Fatalf("expected %d tasks, got %d", len(wantRoles), len(tasks))
	}
	for i, role := range wantRoles {
		if tasks[i].Role != role {
			t.Errorf("task %d: role = %s, want %s", i, tasks[i].Role, role)
		}
		if tasks[i].Index != i {
			t.Errorf("task %d: index = %d, want %d", i, tasks[i].Index, i)
		}
	}
	if meta.BookID != "book-1" {
		t.Errorf("BookID = %q, want book-1", meta.BookID)
	}
	if meta.ChapterRawLines[0] != "## Chapter One" {
		t.Errorf("unexpected chapter raw line: %q", meta.ChapterRawLines[0])
	}
}

func TestFlattenSkipsBlockWithoutPayload(t *testing.T) {
	book := &document.Book{
		Chapters: []document.Chapter{{Body: []document.Block{{}}}},
	}
	_, tasks := Flatten(book)
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks for an empty block, got %d", len(tasks))
	}
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	resp, _ := document.NewPairsResponse([]document.TranslationPair{{Source: "x", Target: "y"}}, "", 0)
	tasks := []document.Task{
		{Index: 0, Role: document.RoleParagraph, SourceText: "x", Response: resp},
	}
	err := Validate(tasks, func(role document.Role, sourceText string, pairs []document.TranslationPair) bool {
		return false
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateSkipsMacroAndCode(t *testing.T) {
	resp, _ := document.NewMacroResponse(document.MacroContent{Name: "pagebreak"})
	tasks := []document.Task{
		{Index: 0, Role: document.RoleMacro, SourceText: "pagebreak", Response: resp},
	}
	err := Validate(tasks, func(role document.Role, sourceText string, pairs []document.TranslationPair) bool {
		t.Fatal("validator should not be called for macro tasks")
		return true
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
