package batch

import (
	"bytes"
	"strings"
	"testing"
)

func TestCustomIDRoundTrip(t *testing.T) {
	id := CustomID("mybook", 42)
	if id != "mybook-00042" {
		t.Fatalf("CustomID = %q, want mybook-00042", id)
	}
	idx, err := ParseIndex(id)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if idx != 42 {
		t.Fatalf("ParseIndex = %d, want 42", idx)
	}
}

func TestParseIndexRejectsMissingSuffix(t *testing.T) {
	if _, err := ParseIndex("mybook"); err == nil {
		t.Fatal("expected an error for a custom_id with no trailing index")
	}
}

func TestParseIndexHandlesHyphenatedPrefix(t *testing.T) {
	idx, err := ParseIndex("my-book-title-00007")
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if idx != 7 {
		t.Fatalf("ParseIndex = %d, want 7", idx)
	}
}

func TestWriteRequestsProducesOneLinePerTask(t *testing.T) {
	var buf bytes.Buffer
	prompts := map[int]string{2: "prompt two", 0: "prompt zero", 1: "prompt one"}
	if err := WriteRequests(&buf, "book", "gpt-4o", prompts); err != nil {
		t.Fatalf("WriteRequests: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"custom_id":"book-00000"`) {
		t.Fatalf("expected lines sorted by index, first line = %s", lines[0])
	}
	if !strings.Contains(lines[0], `"url":"/v1/chat/completions"`) {
		t.Fatalf("expected request url in line, got %s", lines[0])
	}
	if !strings.Contains(lines[0], `"model":"gpt-4o"`) {
		t.Fatalf("expected model in request body, got %s", lines[0])
	}
}

func TestReadResultsParsesSuccessAndErrorLines(t *testing.T) {
	input := `{"custom_id":"book-00000","response":{"body":{"choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":10,"completion_tokens":3}}}}
{"custom_id":"book-00001","error":{"message":"rate limited"}}
`
	results, err := ReadResults(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "hello" || results[0].PromptTokens != 10 || results[0].CompletionTokens != 3 {
		t.Fatalf("unexpected result 0: %+v", results[0])
	}
	if !results[1].Failed || results[1].ErrorMessage != "rate limited" {
		t.Fatalf("unexpected result 1: %+v", results[1])
	}
}

func TestReadResultsSkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"custom_id":"book-00000","response":{"body":{"choices":[{"message":{"content":"hi"}}],"usage":{}}}}` + "\n\n"
	results, err := ReadResults(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestNormalizeStripsFenceAndTrailingComma(t *testing.T) {
	raw := "```json\n{\"a\":1,}\n```"
	got := Normalize(raw)
	if got != `{"a":1}` {
		t.Fatalf("Normalize = %q, want {\"a\":1}", got)
	}
}

func TestNormalizeLeavesPlainJSONUnchanged(t *testing.T) {
	raw := `{"a":1}`
	if got := Normalize(raw); got != raw {
		t.Fatalf("Normalize = %q, want unchanged %q", got, raw)
	}
}
