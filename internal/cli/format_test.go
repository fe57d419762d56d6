package cli

import (
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()
	fn()
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestSection(t *testing.T) {
	out := captureStdout(t, func() { Section("Paths") })
	if !strings.Contains(out, "── Paths ") {
		t.Errorf("section rule missing name: %q", out)
	}
	if !strings.Contains(out, Cyan) || !strings.Contains(out, Reset) {
		t.Errorf("section missing color codes: %q", out)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[int]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
		-4200:   "-4,200",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abc" {
		t.Errorf("truncation = %q", got)
	}
	// Rune-aware: multibyte characters count as one column.
	if got := padRight("héllo", 6); len([]rune(got)) != 6 {
		t.Errorf("rune padding = %q", got)
	}
}

func TestShortenHome(t *testing.T) {
	t.Setenv("HOME", "/home/crew")
	if got := ShortenHome("/home/crew/vault/notes"); got != "~/vault/notes" {
		t.Errorf("ShortenHome = %q", got)
	}
	if got := ShortenHome("/srv/other"); got != "/srv/other" {
		t.Errorf("non-home path changed: %q", got)
	}
}

func TestTreeLine(t *testing.T) {
	if got := TreeLine(0, "notes", true); !strings.Contains(got, "notes/") {
		t.Errorf("folder line = %q", got)
	}
	if got := TreeLine(2, "a.md", false); !strings.HasPrefix(got, "    ") {
		t.Errorf("indent missing: %q", got)
	}
}
