package context

import (
	"testing"

	"github.com/lsilvatti/parallelbook/internal/document"
)

type fakeSource struct {
	tasks map[int]*document.Task
}

func (f *fakeSource) Load(idx int) (*document.Task, error) {
	return f.tasks[idx], nil
}

func (f *fakeSource) Count() (int, error) {
	max := -1
	for idx := range f.tasks {
		if idx > max {
			max = idx
		}
	}
	return max + 1, nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{tasks: map[int]*document.Task{}}
}

func respondWithHint(hint string) *document.Response {
	resp, _ := document.NewPairsResponse(nil, hint, 0)
	return resp
}

func TestHintFindsMostRecentNonEmpty(t *testing.T) {
	src := newFakeSource()
	src.tasks[0] = &document.Task{Index: 0, SourceText: "a", Response: respondWithHint("scene one")}
	src.tasks[1] = &document.Task{Index: 1, SourceText: "b", Response: respondWithHint("")}
	src.tasks[2] = &document.Task{Index: 2, SourceText: "c", Response: respondWithHint("")}

	hint, err := Hint(src, 3)
	if err != nil {
		t.Fatalf("Hint: %v", err)
	}
	if hint != "scene one" {
		t.Fatalf("expected to fall back to task 0's hint, got %q", hint)
	}
}

func TestHintStopsAtUndoneGap(t *testing.T) {
	src := newFakeSource()
	src.tasks[0] = &document.Task{Index: 0, SourceText: "a", Response: respondWithHint("scene one")}
	src.tasks[1] = &document.Task{Index: 1, SourceText: "b"} // no response: stops the scan

	hint, err := Hint(src, 2)
	if err != nil {
		t.Fatalf("Hint: %v", err)
	}
	if hint != "" {
		t.Fatalf("expected empty hint when scan hits an undone task, got %q", hint)
	}
}

func TestHintRespectsLookback(t *testing.T) {
	src := newFakeSource()
	for i := 0; i < 10; i++ {
		src.tasks[i] = &document.Task{Index: i, SourceText: "x", Response: respondWithHint("")}
	}
	src.tasks[0].Response = respondWithHint("too far back")

	hint, err := Hint(src, 9)
	if err != nil {
		t.Fatalf("Hint: %v", err)
	}
	if hint != "" {
		t.Fatalf("expected lookback of %d to exclude task 0, got %q", Lookback, hint)
	}
}

func TestPrevContextOrderAndBudget(t *testing.T) {
	src := newFakeSource()
	src.tasks[0] = &document.Task{Index: 0, SourceText: "First sentence here."}
	src.tasks[1] = &document.Task{Index: 1, SourceText: "Second sentence here."}

	got, err := PrevContext(src, 2, PrevContextWidth)
	if err != nil {
		t.Fatalf("PrevContext: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(got), got)
	}
	if got[0] != "First sentence here." || got[1] != "Second sentence here." {
		t.Fatalf("expected natural reading order, got %v", got)
	}
}

func TestPrevContextTruncatesToWidth(t *testing.T) {
	src := newFakeSource()
	src.tasks[0] = &document.Task{Index: 0, SourceText: "A very long sentence that should exceed a tiny width budget for the test."}

	got, err := PrevContext(src, 1, 10)
	if err != nil {
		t.Fatalf("PrevContext: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one truncated sentence, got %d", len(got))
	}
	if got[0][len(got[0])-3:] != "..." {
		t.Fatalf("expected truncated sentence to end with ellipsis, got %q", got[0])
	}
}

func TestNextContextRespectsLookaheadAndCount(t *testing.T) {
	src := newFakeSource()
	src.tasks[0] = &document.Task{Index: 0, SourceText: "current"}
	src.tasks[1] = &document.Task{Index: 1, SourceText: "Next one."}
	src.tasks[2] = &document.Task{Index: 2, SourceText: "Next two."}

	got, err := NextContext(src, 0, NextContextWidth)
	if err != nil {
		t.Fatalf("NextContext: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(got), got)
	}
	if got[0] != "Next one." || got[1] != "Next two." {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestNextContextStopsAtGap(t *testing.T) {
	src := newFakeSource()
	src.tasks[0] = &document.Task{Index: 0, SourceText: "current"}
	src.tasks[2] = &document.Task{Index: 2, SourceText: "Unreachable because task 1 is missing."}

	got, err := NextContext(src, 0, NextContextWidth)
	if err != nil {
		t.Fatalf("NextContext: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no context past a gap, got %v", got)
	}
}
