package main

import "testing"

func TestParseFlagsRequiresInputFile(t *testing.T) {
	if _, err := parseFlags(nil); err == nil {
		t.Fatal("expected an error when input_file is missing")
	}
}

func TestParseFlagsPositionalAndOptions(t *testing.T) {
	opts, err := parseFlags([]string{
		"--output", "out.json",
		"--state", "state.db",
		"--reset",
		"--num-tasks", "5",
		"--redo", "1,2,3",
		"--force-finish",
		"--failsoft",
		"--model", "gpt-4o",
		"--no-fallback",
		"--extra-hint", "keep names romanized",
		"--debug",
		"book.json",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.inputFile != "book.json" {
		t.Errorf("inputFile = %q, want book.json", opts.inputFile)
	}
	if opts.output != "out.json" || opts.statePath != "state.db" {
		t.Errorf("unexpected output/state: %+v", opts)
	}
	if !opts.reset || !opts.forceFinish || !opts.failsoft || !opts.noFallback || !opts.debug {
		t.Errorf("expected all boolean flags set, got %+v", opts)
	}
	if opts.numTasks != 5 {
		t.Errorf("numTasks = %d, want 5", opts.numTasks)
	}
	if opts.redo != "1,2,3" {
		t.Errorf("redo = %q, want 1,2,3", opts.redo)
	}
	if opts.model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", opts.model)
	}
	if opts.extraHint != "keep names romanized" {
		t.Errorf("extraHint = %q", opts.extraHint)
	}
}

func TestParseFlagsMakeBatchInputAndUseBatchOutput(t *testing.T) {
	opts, err := parseFlags([]string{"--make-batch-input", "book.json"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !opts.makeBatchInput {
		t.Error("expected makeBatchInput to be true")
	}

	opts2, err := parseFlags([]string{"--use-batch-output", "auto", "book.json"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts2.useBatchOutput != "auto" {
		t.Errorf("useBatchOutput = %q, want auto", opts2.useBatchOutput)
	}
}

func TestRunMissingInputFile(t *testing.T) {
	if code := run([]string{}); code != 2 {
		t.Fatalf("run() = %d, want 2 for missing input_file", code)
	}
}

func TestRunUnreadableInputFile(t *testing.T) {
	if code := run([]string{"/nonexistent/path/book.json"}); code != 1 {
		t.Fatalf("run() = %d, want 1 for unreadable input file", code)
	}
}
