// Package document defines the input/output book schema and the task
// records the engine drives through the LLM pipeline.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role identifies the kind of task a block or title produces.
type Role string

const (
	RoleBookTitle    Role = "book_title"
	RoleBookAuthor   Role = "book_author"
	RoleChapterTitle Role = "chapter_title"
	RoleParagraph    Role = "paragraph"
	RoleBlockquote   Role = "blockquote"
	RoleHeader       Role = "header"
	RoleList         Role = "list"
	RoleTable        Role = "table"
	RoleCode         Role = "code"
	RoleMacro        Role = "macro"
)

// TitleField is a book or chapter title/author, which arrives either
// as a bare string (source form) or as a {source, target} object
// (parallel form already translated).
type TitleField struct {
	Source string
	Target string
	// HasTarget reports whether the field arrived already translated.
	HasTarget bool
}

func (t *TitleField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.Source = s
		t.HasTarget = false
		return nil
	}
	var obj struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Source = obj.Source
	t.Target = obj.Target
	t.HasTarget = true
	return nil
}

func (t TitleField) MarshalJSON() ([]byte, error) {
	if !t.HasTarget {
		return json.Marshal(t.Source)
	}
	return json.Marshal(struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}{t.Source, t.Target})
}

// CodePayload is the payload of a "code" block: opaque source text.
type CodePayload struct {
	Value string
}

// MacroPayload is the payload of a "macro" block: a single line of
// directive text, e.g. "pagebreak" or "image cover.png".
type MacroPayload string

// Block is a single body element of a chapter. Exactly one payload
// field is set, mirroring the tagged-variant shape of the input JSON.
type Block struct {
	RawLine string `json:"raw_line,omitempty"`
	Concat  bool   `json:"concat,omitempty"`

	Header     *string  `json:"header,omitempty"`
	Paragraph  *string  `json:"paragraph,omitempty"`
	Blockquote *string  `json:"blockquote,omitempty"`
	List       []string `json:"list,omitempty"`
	Table      []string `json:"table,omitempty"`
	Code       *string  `json:"code,omitempty"`
	Macro      *string  `json:"macro,omitempty"`
}

// PayloadRole returns the role implied by whichever payload field is
// set, and an error if zero or more than one payload key is present.
func (b *Block) PayloadRole() (Role, error) {
	count := 0
	var role Role
	if b.Header != nil {
		count++
		role = RoleHeader
	}
	if b.Paragraph != nil {
		count++
		role = RoleParagraph
	}
	if b.Blockquote != nil {
		count++
		role = RoleBlockquote
	}
	if b.List != nil {
		count++
		role = RoleList
	}
	if b.Table != nil {
		count++
		role = RoleTable
	}
	if b.Code != nil {
		count++
		role = RoleCode
	}
	if b.Macro != nil {
		count++
		role = RoleMacro
	}
	if count != 1 {
		return "", fmt.Errorf("block must have exactly one payload key, found %d", count)
	}
	return role, nil
}

// Chapter is a book chapter: an optional title and an ordered body.
type Chapter struct {
	Title   *TitleField `json:"title,omitempty"`
	RawLine string      `json:"raw_line,omitempty"`
	Body    []Block     `json:"body"`
}

// Book is the root input document.
type Book struct {
	Format         string      `json:"format,omitempty"`
	ID             string      `json:"id,omitempty"`
	Title          *TitleField `json:"title,omitempty"`
	Author         *TitleField `json:"author,omitempty"`
	Chapters       []Chapter   `json:"chapters,omitempty"`
	SourceLanguage string      `json:"source_language,omitempty"`
	TargetLanguage string      `json:"target_language,omitempty"`
	Cost           float64     `json:"cost,omitempty"`
}

// Attrs carries per-task provenance/grouping metadata threaded
// unchanged from the flattener to the rebuilder.
type Attrs struct {
	RawLine string `json:"raw_line,omitempty"`
	Concat  bool   `json:"concat,omitempty"`
}

// TranslationPair is one aligned source/target sentence or cell.
type TranslationPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// MacroContent is the unmarshaled content of a macro/code response.
type MacroContent struct {
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

// Response is the persisted result of executing a task.
type Response struct {
	Content json.RawMessage `json:"content"`
	Hint    string          `json:"hint,omitempty"`
	Cost    float64         `json:"cost"`
	Error   bool            `json:"error,omitempty"`
	Intact  bool            `json:"intact,omitempty"`
}

// Pairs decodes Content as a list of translation pairs. Valid for
// every role except macro/code.
func (r *Response) Pairs() ([]TranslationPair, error) {
	var pairs []TranslationPair
	if err := json.Unmarshal(r.Content, &pairs); err != nil {
		return nil, fmt.Errorf("decode response content as pairs: %w", err)
	}
	return pairs, nil
}

// Macro decodes Content as a macro/code record.
func (r *Response) Macro() (MacroContent, error) {
	var m MacroContent
	if err := json.Unmarshal(r.Content, &m); err != nil {
		return MacroContent{}, fmt.Errorf("decode response content as macro: %w", err)
	}
	return m, nil
}

// NewPairsResponse builds a Response whose content is a pair list.
func NewPairsResponse(pairs []TranslationPair, hint string, cost float64) (*Response, error) {
	raw, err := json.Marshal(pairs)
	if err != nil {
		return nil, err
	}
	return &Response{Content: raw, Hint: hint, Cost: cost}, nil
}

// NewMacroResponse builds a Response whose content is a macro record.
func NewMacroResponse(m MacroContent) (*Response, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return &Response{Content: raw}, nil
}

// Task is one atomic unit of translation/analysis work.
type Task struct {
	Index      int
	Role       Role
	SourceText string
	Attrs      Attrs
	Response   *Response
}

// Done reports whether the task has a persisted response.
func (t *Task) Done() bool {
	return t.Response != nil
}
