// Package prompt assembles deterministic prompts for the translation
// and analysis LLM calls. Builders are pure functions of their
// arguments so that the same (task, context, attempt, variant) always
// yields byte-identical prompt text — this is what makes the retry
// ladder (C8) and the batch path (C11) share exactly one prompt per
// attempt configuration.
package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lsilvatti/parallelbook/internal/core/splitter"
	"github.com/lsilvatti/parallelbook/internal/document"
)

// Variant selects between the two context-serialization/example
// strategies the retry ladder alternates between at each temperature
// step (the "A"/"B" columns of the ladder in §4.8).
type Variant struct {
	// JSONContext renders the scene hint/prev/next context as a JSON
	// object rather than a bulleted list.
	JSONContext bool
	// UseSourceExample swaps the schema-only worked example for one
	// that echoes the actual source text, once attempt >= 3.
	UseSourceExample bool
}

// Input bundles everything a translation prompt is built from.
type Input struct {
	BookTitle string
	Role      document.Role
	Source    string
	Hint      string
	PrevCtx   []string
	NextCtx   []string
	ExtraHint string
	Attempt   int
	Variant   Variant
}

var quotationMarkLeading = regexp.MustCompile(`^["“‘「『]`)

// BuildTranslation renders a single deterministic prompt string for
// one attempt of the en→ja translation ladder.
func BuildTranslation(in Input) string {
	var lines []string
	p := func(s string) { lines = append(lines, s) }

	if in.BookTitle != "" {
		p(fmt.Sprintf("あなたは『%s』の英日翻訳を担当しています。", in.BookTitle))
	} else {
		p("あなたは書籍の英日翻訳を担当しています。")
	}
	p("以下の情報をもとに、与えられたパラグラフを自然な日本語に翻訳してください。")
	p("----")

	sourceForPrompt := in.Source
	if in.Attempt >= 3 {
		sourceForPrompt = strings.Join(splitter.Split(in.Source), "\n")
	}

	if in.Variant.JSONContext {
		data := map[string]string{}
		if in.Hint != "" {
			data["現在の場面の要約"] = in.Hint
		}
		if len(in.PrevCtx) > 0 {
			data["直前のパラグラフ"] = strings.Join(in.PrevCtx, " ")
		}
		if len(in.NextCtx) > 0 {
			data["直後のパラグラフ"] = strings.Join(in.NextCtx, " ")
		}
		data["翻訳対象のパラグラフ"] = sourceForPrompt
		encoded, _ := json.MarshalIndent(data, "", "  ")
		p(string(encoded))
		p("")
	} else {
		if in.Hint != "" {
			p("現在の場面の要約（前回出力された文脈ヒント）:")
			p("- " + in.Hint)
			p("")
		}
		if len(in.PrevCtx) > 0 {
			p("直前のパラグラフ:")
			for _, s := range in.PrevCtx {
				p(" - " + s)
			}
			p("")
		}
		if len(in.NextCtx) > 0 {
			p("直後のパラグラフ:")
			for _, s := range in.NextCtx {
				p(" - " + s)
			}
			p("")
		}
		p("----")
		p("翻訳対象のパラグラフ:")
		p(sourceForPrompt)
	}

	p("")
	p("----")
	p("出力形式はJSONとし、次の要素を含めてください:")
	p("{")
	p(`  "translations": [`)
	if in.Role == document.RoleParagraph {
		p(`    { "en": "原文の文1", "ja": "対応する訳文1" },`)
		p(`    { "en": "原文の文2", "ja": "対応する訳文2" }`)
		p("    // ...")
	} else {
		p(`    { "en": "原文の文", "ja": "対応する訳文" }`)
	}
	p("  ],")
	p(`  "context_hint": "この段落を含めた現在の場面の要約、登場人物、心情、場の変化などを1文（100トークン程度）で簡潔に記述してください。"`)
	p("}")
	p("")
	p("----")

	if in.Attempt >= 3 {
		p("例を示します:")
		p("{")
		p(`  "translations": [`)
		if in.Variant.UseSourceExample {
			p(fmt.Sprintf(`    { "en": %q, "ja": "（対応する訳文）" }`, firstLine(sourceForPrompt)))
		} else if in.Role == document.RoleParagraph {
			p(`    { "en": "He said, “Hello, world!”", "ja": "「こんにちは世界！」と彼は言った。" },`)
			p(`    { "en": "“Good-bye, world”, I replied.", "ja": "「さよなら世界」と私は応えた。" }`)
			p("    // ...")
		} else {
			p(`    { "en": "He said, “Hello, world!”", "ja": "「こんにちは世界！」と彼は言った。" }`)
		}
		p("  ],")
		p(`  "context_hint": "ジョーが言ったことと反対のことをナンシーが言うやり取りをしている。"`)
		p("}")
		p("")
		p("----")
	}

	switch in.Role {
	case document.RoleBookTitle:
		p("このパラグラフは本の題名です。")
	case document.RoleChapterTitle:
		p("このパラグラフは章の題名です。")
	case document.RoleParagraph, document.RoleBlockquote:
		p("英文は意味的に自然な単位で文分割してください。たとえ短い文でも、文とみなせれば独立させてください。")
		p("ただし、分割の際に元の英文を1文字も変更しないでください。句読点や引用符も含めて全て保持してください。")
		if in.Attempt >= 3 && quotationMarkLeading.MatchString(in.Source) {
			p("【重要】 翻訳対象には引用符が含まれています。それを絶対に消さないでください。")
		}
	case document.RoleHeader:
		p("英文はヘッダなので、文分割は不要です。入力を1文として扱ってください。")
	case document.RoleList:
		p("英文はリストの項目なので、文分割は不要です。入力を1文として扱ってください。")
	case document.RoleTable:
		p(`英文は "|" で区切られたテーブルの要素です。文分割は不要です。"|" は維持した上で、それ以外の中身を翻訳してください。`)
	}
	p("日本語訳は文体・語調に配慮しつつも、できるだけ直訳調にとどめ、構文や語順の対応関係が分かるようにしてください。")
	p("context_hintは次の段落の翻訳時に役立つような背景情報を含めてください（例：誰が話しているか、舞台の変化、話題の推移など）。")
	p("不要な解説や装飾、サマリー文などは含めず、必ず上記JSON構造のみを出力してください。")

	if in.Attempt >= 2 {
		p("JSONの書式には細心の注意を払ってください。引用符や括弧やカンマの仕様を厳密に守ってください。")
		p(`文分割の際に原文を変更しないでください。出力の "en" の値を連結すると原文と同じになるようにしてください。`)
		p(fmt.Sprintf("過去のエラーによる現在の再試行回数=%d", in.Attempt-1))
	}

	if in.ExtraHint != "" {
		p("")
		p(in.ExtraHint)
	}

	return strings.Join(lines, "\n")
}

// AnalysisInput bundles everything a syntactic-analysis prompt is
// built from: one already-translated source/target pair plus the
// retry attempt number.
type AnalysisInput struct {
	Source  string
	Target  string
	Attempt int
}

// BuildAnalysis renders a deterministic prompt asking the model to
// decompose an English sentence into its syntactic pattern, elements,
// and (if present) one level of subordinate clauses/subsentences,
// matching the document.Sentence tree shape.
func BuildAnalysis(in AnalysisInput) string {
	var lines []string
	p := func(s string) { lines = append(lines, s) }

	p("あなたは英文の統語解析を担当しています。")
	p("次の英文を文型（SV, SVO, SVC, SVOO, SVOC, other のいずれか）に分類し、文の要素（S, V, O, C, M）に分解してください。")
	p("従属節や埋め込み文がある場合は、1階層分だけ subclauses または subsentences として分離してください。")
	p("----")
	p("解析対象の英文:")
	p(in.Source)
	if in.Target != "" {
		p("対応する日本語訳（参考情報、解析結果には使用しないでください）:")
		p(in.Target)
	}
	p("")
	p("----")
	p("出力形式はJSONとし、次の構造に従ってください:")
	p("{")
	p(`  "format": "sentence",`)
	p(`  "text": "英文全体",`)
	p(`  "pattern": "SVO",`)
	p(`  "elements": [ { "type": "S", "text": "..." }, { "type": "V", "text": "..." } ],`)
	p(`  "subclauses": [ { "format": "clause", "text": "...", "relation": "...", "pattern": "SV", "elements": [] } ],`)
	p(`  "subsentences": []`)
	p("}")
	p("")
	p("----")
	p("elementsの各typeはS(主語)・V(動詞)・O(目的語)・C(補語)・M(修飾語)のいずれかとし、textは原文から1文字も変更せず抜き出してください。")
	p("従属節がない場合はsubclausesとsubsentencesを空配列にしてください。")
	p("不要な解説やコメントは含めず、必ず上記JSON構造のみを出力してください。")

	if in.Attempt >= 2 {
		p("JSONの書式には細心の注意を払ってください。引用符や括弧やカンマの仕様を厳密に守ってください。")
		p(fmt.Sprintf("過去のエラーによる現在の再試行回数=%d", in.Attempt-1))
	}

	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
