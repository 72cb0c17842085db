package preprocess

import (
	"os"
	"path/filepath"
	"testing"
)

func TestObjectLikeMacroExpansion(t *testing.T) {
	p := New(nil, nil)
	toks, err := p.Run("t.cpp", "#define N 3\nint x = N;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, tok := range toks {
		if tok.Text == "3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the macro body '3' to appear in the expanded output, got %+v", toks)
	}
}

func TestConditionalInclusionSkipsFalseBranch(t *testing.T) {
	p := New(nil, nil)
	toks, err := p.Run("t.cpp", "#if 0\nint dead;\n#else\nint alive;\n#endif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	for _, tok := range toks {
		names = append(names, tok.Text)
	}
	for _, n := range names {
		if n == "dead" {
			t.Fatalf("expected the #if 0 branch to be skipped entirely, got %v", names)
		}
	}
	hasAlive := false
	for _, n := range names {
		if n == "alive" {
			hasAlive = true
		}
	}
	if !hasAlive {
		t.Fatalf("expected the #else branch to be kept, got %v", names)
	}
}

func TestArithmeticConditionEvaluatesPrecedence(t *testing.T) {
	p := New(nil, nil)
	toks, err := p.Run("t.cpp", "#if 1 + 2 * 3 == 7\nint ok;\n#endif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, tok := range toks {
		if tok.Text == "ok" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected '1 + 2 * 3 == 7' to hold, got %+v", toks)
	}
}

func TestPragmaOnceSkipsSecondInclude(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "h.hpp")
	if err := os.WriteFile(header, []byte("#pragma once\nint once_only;\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	src := filepath.Join(dir, "t.cpp")
	body := "#include \"h.hpp\"\n#include \"h.hpp\"\n"

	p := New(nil, nil)
	toks, err := p.Run(src, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count := 0
	for _, tok := range toks {
		if tok.Text == "once_only" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected #pragma once to admit the header exactly once, got %d", count)
	}
}

func TestResolveIncludeSearchesMultipleDirsConcurrently(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	header := filepath.Join(dir2, "only_in_second.hpp")
	if err := os.WriteFile(header, []byte("int x;\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	p := New([]string{dir1, dir2}, nil)
	got, err := p.resolveInclude("t.cpp", `include <only_in_second.hpp>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != header {
		t.Fatalf("got %q, want %q", got, header)
	}
}
