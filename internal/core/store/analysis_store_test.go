package store

import (
	"path/filepath"
	"testing"
)

func openTestAnalysisStore(t *testing.T) *AnalysisStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.db")
	s, err := OpenAnalysisStore(path)
	if err != nil {
		t.Fatalf("OpenAnalysisStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAnalysisRows() []AnalysisRow {
	return []AnalysisRow{
		{Index: 0, Request: `[{"source":"He loved linguistics.","target":"彼は言語学を愛した。"}]`},
		{Index: 1, Request: `[{"source":"It gave him wisdom.","target":"それは彼に知恵を与えた。"}]`},
	}
}

func TestAnalysisInitializeAndLoad(t *testing.T) {
	s := openTestAnalysisStore(t)
	if err := s.Initialize(sampleAnalysisRows()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	row, err := s.Load(0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if row == nil || row.Response != "" {
		t.Fatalf("expected row 0 with empty response, got %+v", row)
	}
}

func TestAnalysisSetResponseAndFindUndone(t *testing.T) {
	s := openTestAnalysisStore(t)
	if err := s.Initialize(sampleAnalysisRows()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	idx, err := s.FindUndone()
	if err != nil || idx != 0 {
		t.Fatalf("FindUndone = %d, %v; want 0, nil", idx, err)
	}

	if err := s.SetResponse(0, `[{"format":"sentence","text":"He loved linguistics.","pattern":"SVO","elements":[]}]`); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}

	idx, err = s.FindUndone()
	if err != nil || idx != 1 {
		t.Fatalf("FindUndone = %d, %v; want 1, nil", idx, err)
	}

	row, err := s.Load(0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if row.Response == "" {
		t.Fatal("expected row 0 to have a response after SetResponse")
	}
}

func TestAnalysisLoadAllOrdered(t *testing.T) {
	s := openTestAnalysisStore(t)
	rows := sampleAnalysisRows()
	if err := s.Initialize(rows); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	got, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
	for i, r := range got {
		if r.Index != i {
			t.Fatalf("expected rows in index order, got index %d at position %d", r.Index, i)
		}
	}
}

func TestAnalysisFindUndoneReturnsMinusOneWhenComplete(t *testing.T) {
	s := openTestAnalysisStore(t)
	rows := sampleAnalysisRows()[:1]
	if err := s.Initialize(rows); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.SetResponse(0, `[]`); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}
	idx, err := s.FindUndone()
	if err != nil {
		t.Fatalf("FindUndone: %v", err)
	}
	if idx != -1 {
		t.Fatalf("expected -1 when all rows done, got %d", idx)
	}
}
