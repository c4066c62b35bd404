package tail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.log")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLinesSmallFile(t *testing.T) {
	path := writeFile(t, "a\nb\nc\n")

	lines, truncated, err := Lines(path, 10)
	if err != nil {
		t.Fatalf("Lines() error = %v", err)
	}
	if truncated {
		t.Error("truncated = true, want false")
	}
	want := []string{"a", "b", "c"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLinesReturnsTailWhenOverLimit(t *testing.T) {
	path := writeFile(t, "one\ntwo\nthree\nfour\n")

	lines, truncated, err := Lines(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Error("truncated = false, want true")
	}
	if len(lines) != 2 || lines[0] != "three" || lines[1] != "four" {
		t.Errorf("lines = %v, want [three four]", lines)
	}
}

func TestLinesDropsPartialLeadingLineOfWindow(t *testing.T) {
	// Build a file bigger than the read window so the window starts
	// mid-line; that fragment must not be returned.
	var b strings.Builder
	for i := 0; b.Len() < windowBytes+4096; i++ {
		fmt.Fprintf(&b, "line-%08d padding padding padding padding padding\n", i)
	}
	path := writeFile(t, b.String())

	lines, truncated, err := Lines(path, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Error("truncated = false for windowed read, want true")
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "line-") {
			t.Errorf("returned partial line %q", l)
		}
	}
}

func TestLinesMissingFile(t *testing.T) {
	_, _, err := Lines(filepath.Join(t.TempDir(), "none.log"), 10)
	if !os.IsNotExist(err) {
		t.Errorf("error = %v, want os.IsNotExist", err)
	}
}
