// Command parallelbook drives a book through the translation pipeline:
// flatten its structure into tasks, walk the retry ladder (or reuse
// an offline batch response) for each undone task, persist every
// response durably, and rebuild the finished document (§4.12).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/lsilvatti/parallelbook/internal/config"
	"github.com/lsilvatti/parallelbook/internal/core/ai"
	"github.com/lsilvatti/parallelbook/internal/core/batch"
	ctxwindow "github.com/lsilvatti/parallelbook/internal/core/context"
	"github.com/lsilvatti/parallelbook/internal/core/db"
	"github.com/lsilvatti/parallelbook/internal/core/flatten"
	"github.com/lsilvatti/parallelbook/internal/core/glossary"
	"github.com/lsilvatti/parallelbook/internal/core/linter"
	"github.com/lsilvatti/parallelbook/internal/core/prompt"
	"github.com/lsilvatti/parallelbook/internal/core/rebuild"
	"github.com/lsilvatti/parallelbook/internal/core/retry"
	"github.com/lsilvatti/parallelbook/internal/core/store"
	"github.com/lsilvatti/parallelbook/internal/core/tokenizer"
	"github.com/lsilvatti/parallelbook/internal/core/validator"
	"github.com/lsilvatti/parallelbook/internal/document"
	"github.com/lsilvatti/parallelbook/pkg/utils"
)

const batchPrefix = "task"

func main() {
	defer utils.RecoverPanic()

	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("parallelbook %s\n", utils.Version)
		return
	}

	os.Exit(run(os.Args[1:]))
}

type options struct {
	inputFile      string
	output         string
	statePath      string
	reset          bool
	numTasks       int
	redo           string
	forceFinish    bool
	failsoft       bool
	model          string
	noFallback     bool
	extraHint      string
	makeBatchInput bool
	useBatchOutput string
	debug          bool
	cachePath      string
	noCache        bool
	noGlossary     bool
	noLint         bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("parallelbook", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.output, "output", "", "path to write the translated document (default <input>.translated.json)")
	fs.StringVar(&opts.statePath, "state", "", "path to the state database (default <input>.state.db)")
	fs.BoolVar(&opts.reset, "reset", false, "drop and reinitialize all task state before running")
	fs.IntVar(&opts.numTasks, "num-tasks", 0, "stop after completing this many tasks (0 = unlimited)")
	fs.StringVar(&opts.redo, "redo", "", "comma-separated task indices to clear and retranslate")
	fs.BoolVar(&opts.forceFinish, "force-finish", false, "rebuild and write output even if tasks remain undone")
	fs.BoolVar(&opts.failsoft, "failsoft", false, "substitute a marked failure response instead of halting when the ladder is exhausted")
	fs.StringVar(&opts.model, "model", "", "primary model name (default from config)")
	fs.BoolVar(&opts.noFallback, "no-fallback", false, "never fall back to a secondary model")
	fs.StringVar(&opts.extraHint, "extra-hint", "", "verbatim text appended to every prompt")
	fs.BoolVar(&opts.makeBatchInput, "make-batch-input", false, "write a batch request file instead of calling the provider")
	fs.StringVar(&opts.useBatchOutput, "use-batch-output", "", "path to a batch result file to reuse at attempt 1, or \"auto\"")
	fs.BoolVar(&opts.debug, "debug", false, "print verbose diagnostics to stderr")
	fs.StringVar(&opts.cachePath, "cache", "", "path to the cross-run translation cache (default <input>.cache.db)")
	fs.BoolVar(&opts.noCache, "no-cache", false, "never read or write the translation cache")
	fs.BoolVar(&opts.noGlossary, "no-glossary", false, "skip automatic character-name glossary detection")
	fs.BoolVar(&opts.noLint, "no-lint", false, "skip the post-finalize quality report")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 1 {
		return nil, fmt.Errorf("missing required positional argument: input_file")
	}
	opts.inputFile = fs.Arg(0)
	return opts, nil
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: %v\n", err)
		return 2
	}

	if opts.statePath == "" {
		opts.statePath = opts.inputFile + ".state.db"
	}

	raw, err := os.ReadFile(opts.inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: read input: %v\n", err)
		return 1
	}
	var book document.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: parse input: %v\n", err)
		return 1
	}

	meta, tasks := flatten.Flatten(&book)
	if opts.debug {
		fmt.Fprintf(os.Stderr, "parallelbook: flattened %d tasks\n", len(tasks))
	}

	st, err := store.Open(opts.statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: open state: %v\n", err)
		return 1
	}
	defer st.Close()

	existing, err := st.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: count state: %v\n", err)
		return 1
	}
	if opts.reset || existing == 0 {
		if err := st.Initialize(tasks); err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: initialize state: %v\n", err)
			return 1
		}
	} else if existing != len(tasks) {
		fmt.Fprintf(os.Stderr, "parallelbook: state has %d tasks but input flattens to %d; pass --reset to start over\n", existing, len(tasks))
		return 1
	}

	if opts.redo != "" {
		for _, field := range strings.Split(opts.redo, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			idx, err := strconv.Atoi(field)
			if err != nil {
				fmt.Fprintf(os.Stderr, "parallelbook: invalid --redo index %q: %v\n", field, err)
				return 1
			}
			if err := st.ResetTask(idx); err != nil {
				fmt.Fprintf(os.Stderr, "parallelbook: redo task %d: %v\n", idx, err)
				return 1
			}
		}
	}

	if opts.makeBatchInput {
		return makeBatchInput(st, opts)
	}

	if opts.extraHint == "" && !opts.noGlossary {
		var paragraphs []string
		for _, t := range tasks {
			if t.Role == document.RoleParagraph {
				paragraphs = append(paragraphs, t.SourceText)
			}
		}
		scanner := glossary.NewScanner()
		if hint := glossary.Hint(scanner.ScanParagraphs(paragraphs), 20); hint != "" {
			opts.extraHint = hint
			if opts.debug {
				fmt.Fprintf(os.Stderr, "parallelbook: detected glossary hint: %s\n", hint)
			}
		}
	}

	bookTitle := ""
	if book.Title != nil {
		bookTitle = book.Title.Source
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: load config: %v\n", err)
		return 1
	}
	model := opts.model
	if model == "" {
		model = cfg.Model
	}
	noFallback := opts.noFallback || cfg.NoFallback
	failsoft := opts.failsoft || cfg.Failsoft

	var batchResults map[int]batch.Result
	if opts.useBatchOutput != "" {
		path := opts.useBatchOutput
		if path == "auto" {
			path = opts.statePath + ".batch-output.jsonl"
		}
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: open batch output: %v\n", err)
			return 1
		}
		batchResults, err = batch.ReadResults(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: parse batch output: %v\n", err)
			return 1
		}
		if opts.debug {
			fmt.Fprintf(os.Stderr, "parallelbook: loaded %d batch results from %s\n", len(batchResults), path)
		}
	}

	factory := ai.NewProviderFactory(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := factory.CreateProvider(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: create provider: %v\n", err)
		return 1
	}

	estimator, err := tokenizer.NewEstimator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: init tokenizer: %v\n", err)
		return 1
	}

	var cache *db.Cache
	if !opts.noCache {
		cachePath := opts.cachePath
		if cachePath == "" {
			cachePath = opts.inputFile + ".cache.db"
		}
		cache, err = db.Open(cachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: open cache: %v\n", err)
			return 1
		}
		defer cache.Close()
	}

	engine := &retry.Engine{
		Provider:     provider,
		Tokenizer:    estimator,
		BookTitle:    bookTitle,
		MainModel:    model,
		NoFallback:   noFallback,
		Failsoft:     failsoft,
		ExtraHint:    opts.extraHint,
		BatchResults: batchResults,
		Cache:        cache,
	}

	interrupted := false
	processed := 0
	for {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		if opts.numTasks > 0 && processed >= opts.numTasks {
			break
		}
		idx, err := st.FindUndone()
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: find undone: %v\n", err)
			return 1
		}
		if idx == -1 {
			break
		}
		task, err := st.Load(idx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: load task %d: %v\n", idx, err)
			return 1
		}
		if task == nil {
			fmt.Fprintf(os.Stderr, "parallelbook: task %d vanished from state\n", idx)
			return 1
		}

		hint, err := ctxwindow.Hint(st, idx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: build hint for task %d: %v\n", idx, err)
			return 1
		}
		prevCtx, err := ctxwindow.PrevContext(st, idx, ctxwindow.PrevContextWidth)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: build prev context for task %d: %v\n", idx, err)
			return 1
		}
		nextCtx, err := ctxwindow.NextContext(st, idx, ctxwindow.NextContextWidth)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: build next context for task %d: %v\n", idx, err)
			return 1
		}

		if opts.debug {
			fmt.Fprintf(os.Stderr, "parallelbook: executing task %d (%s)\n", idx, task.Role)
		}
		resp, err := engine.Execute(ctx, idx, task.Role, task.SourceText, hint, prevCtx, nextCtx)
		if err != nil {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			fmt.Fprintf(os.Stderr, "parallelbook: task %d failed: %v\n", idx, err)
			return 1
		}
		if err := st.SetResponse(idx, resp); err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: persist task %d: %v\n", idx, err)
			return 1
		}
		processed++
	}

	remaining, err := st.FindUndone()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: find undone: %v\n", err)
		return 1
	}
	if remaining != -1 && !opts.forceFinish {
		if interrupted {
			fmt.Fprintf(os.Stderr, "parallelbook: interrupted, %d task(s) remain; resume by re-running\n", remaining+1)
			return 0
		}
		fmt.Fprintf(os.Stderr, "parallelbook: stopped after %d task(s); %d remain; resume by re-running or pass --force-finish\n", processed, remaining+1)
		return 0
	}

	allTasks, err := st.LoadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: load all tasks: %v\n", err)
		return 1
	}
	validateAtFinalize := func(role document.Role, sourceText string, pairs []document.TranslationPair) bool {
		return validator.ValidateContent(role, sourceText, pairs, validator.MaxDiffRatio)
	}
	if err := flatten.Validate(allTasks, validateAtFinalize); err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: finalize validation failed: %v\n", err)
		return 1
	}

	out, err := rebuild.Rebuild(meta, allTasks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: rebuild: %v\n", err)
		return 1
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: encode output: %v\n", err)
		return 1
	}
	outputPath := opts.output
	if outputPath == "" {
		outputPath = opts.inputFile + ".translated.json"
	}
	if err := os.WriteFile(outputPath, encoded, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: write output: %v\n", err)
		return 1
	}
	fmt.Printf("parallelbook: wrote %s (cost $%.3f)\n", outputPath, out.Cost)

	if !opts.noLint {
		runLintReport(allTasks)
	}
	return 0
}

// runLintReport prints a non-fatal quality diagnostic over every
// translated pair's target text: bracket balance, leftover English,
// and excessive punctuation. It never affects the exit code.
func runLintReport(tasks []document.Task) {
	var lines []string
	for _, t := range tasks {
		if t.Response == nil {
			continue
		}
		pairs, err := t.Response.Pairs()
		if err != nil {
			continue
		}
		for _, p := range pairs {
			lines = append(lines, p.Target)
		}
	}

	result := linter.Check(lines, linter.CheckOptions{SourceLang: "en", TargetLang: "ja"})
	if result.PassedAll {
		return
	}
	fmt.Fprintf(os.Stderr, "parallelbook: quality report: %d issue(s)\n", len(result.Issues))
	for _, issue := range result.Issues {
		fmt.Fprintf(os.Stderr, "  [%s] line %d: %s (%s)\n", issue.Severity, issue.LineID, issue.IssueType, issue.Suggestion)
	}
}

// makeBatchInput writes attempt-1 prompts for every undone task to a
// batch request file instead of calling the provider online.
func makeBatchInput(st *store.Store, opts *options) int {
	allTasks, err := st.LoadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: load all tasks: %v\n", err)
		return 1
	}

	prompts := map[int]string{}
	for _, t := range allTasks {
		if t.Response != nil {
			continue
		}
		if t.Role == document.RoleMacro || t.Role == document.RoleCode {
			continue
		}
		hint, err := ctxwindow.Hint(st, t.Index)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: build hint for task %d: %v\n", t.Index, err)
			return 1
		}
		prevCtx, err := ctxwindow.PrevContext(st, t.Index, ctxwindow.PrevContextWidth)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: build prev context for task %d: %v\n", t.Index, err)
			return 1
		}
		nextCtx, err := ctxwindow.NextContext(st, t.Index, ctxwindow.NextContextWidth)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallelbook: build next context for task %d: %v\n", t.Index, err)
			return 1
		}
		in := prompt.Input{
			Role:      t.Role,
			Source:    t.SourceText,
			Hint:      hint,
			PrevCtx:   prevCtx,
			NextCtx:   nextCtx,
			ExtraHint: opts.extraHint,
			Attempt:   1,
			Variant:   prompt.Variant{JSONContext: true},
		}
		prompts[t.Index] = prompt.BuildTranslation(in)
	}

	model := opts.model
	if model == "" {
		if cfg, err := config.Load(); err == nil {
			model = cfg.Model
		}
	}

	outPath := opts.output
	if outPath == "" {
		outPath = opts.statePath + ".batch-input.jsonl"
	}
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: create batch input file: %v\n", err)
		return 1
	}
	defer f.Close()

	if err := batch.WriteRequests(f, batchPrefix, model, prompts); err != nil {
		fmt.Fprintf(os.Stderr, "parallelbook: write batch input: %v\n", err)
		return 1
	}
	fmt.Printf("parallelbook: wrote %d batch request(s) to %s\n", len(prompts), outPath)
	return 0
}
