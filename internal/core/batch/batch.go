// Package batch serializes flattened tasks into the offline
// batch-API request format and parses returned result files back
// into per-index assistant messages, so the retry engine can reuse
// an out-of-band batch response at attempt 1 instead of an online
// call (§4.11).
package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const requestsPerLineURL = "/v1/chat/completions"

// Request is one line of a batch request file.
type Request struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     RequestBody `json:"body"`
}

// RequestBody is the chat-completion call body embedded in a batch
// request line.
type RequestBody struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var customIDSuffix = regexp.MustCompile(`-(\d+)$`)

// CustomID formats the "<prefix>-<idx:05d>" id a batch line is keyed
// by.
func CustomID(prefix string, idx int) string {
	return fmt.Sprintf("%s-%05d", prefix, idx)
}

// ParseIndex recovers idx from a custom_id of the form
// "<prefix>-<idx:05d>".
func ParseIndex(customID string) (int, error) {
	m := customIDSuffix.FindStringSubmatch(customID)
	if m == nil {
		return 0, fmt.Errorf("custom_id %q has no trailing index", customID)
	}
	return strconv.Atoi(m[1])
}

// WriteRequests writes one JSON-Lines request per (idx, prompt, model)
// tuple to w.
func WriteRequests(w io.Writer, prefix string, model string, prompts map[int]string) error {
	indices := make([]int, 0, len(prompts))
	for idx := range prompts {
		indices = append(indices, idx)
	}
	sortInts(indices)

	enc := json.NewEncoder(w)
	for _, idx := range indices {
		req := Request{
			CustomID: CustomID(prefix, idx),
			Method:   "POST",
			URL:      requestsPerLineURL,
			Body: RequestBody{
				Model:    model,
				Messages: []Message{{Role: "user", Content: prompts[idx]}},
			},
		}
		if err := enc.Encode(req); err != nil {
			return fmt.Errorf("encode batch request for index %d: %w", idx, err)
		}
	}
	return nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Result is one parsed line of a batch output file: the raw assistant
// content plus token usage, keyed by the task index recovered from
// custom_id.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Failed           bool
	ErrorMessage     string
}

type resultLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		Body struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Usage struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		} `json:"body"`
	} `json:"response"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

var codeBlockRe = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*(\{.*?\})\s*` + "```")
var trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)

// Normalize strips an outer ```json fence and trailing commas inside
// arrays/objects, matching the online path's response cleanup so both
// paths parse identically.
func Normalize(raw string) string {
	cleaned := raw
	if m := codeBlockRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	return trailingCommaRe.ReplaceAllString(cleaned, "$1")
}

// ReadResults parses a batch output JSON-Lines stream into a map from
// task index to Result.
func ReadResults(r io.Reader) (map[int]Result, error) {
	results := map[int]Result{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rl resultLine
		if err := json.Unmarshal([]byte(line), &rl); err != nil {
			return nil, fmt.Errorf("parse batch result line: %w", err)
		}
		idx, err := ParseIndex(rl.CustomID)
		if err != nil {
			return nil, fmt.Errorf("parse batch result custom_id: %w", err)
		}
		if rl.Error != nil {
			results[idx] = Result{Failed: true, ErrorMessage: rl.Error.Message}
			continue
		}
		if rl.Response == nil || len(rl.Response.Body.Choices) == 0 {
			results[idx] = Result{Failed: true, ErrorMessage: "no choices in batch response"}
			continue
		}
		results[idx] = Result{
			Content:          Normalize(rl.Response.Body.Choices[0].Message.Content),
			PromptTokens:     rl.Response.Body.Usage.PromptTokens,
			CompletionTokens: rl.Response.Body.Usage.CompletionTokens,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan batch results: %w", err)
	}
	return results, nil
}
