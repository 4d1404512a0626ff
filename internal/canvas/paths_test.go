package canvas

import (
	"errors"
	"testing"
)

func TestResolvePathNormalizes(t *testing.T) {
	cases := []struct {
		raw  string
		ext  string
		want string
	}{
		{"src/main.py", "", "src/main.py"},
		{"  /src/app.js  ", "", "src/app.js"},
		{"src\\win\\style.css", "", "src/win/style.css"},
		{"a/./b/c.txt", "", "a/b/c.txt"},
		{"a/b/../c.txt", "", "a/c.txt"},
		{"backend/server", ".py", "backend/server.py"},
		{"README", ".md", "README.md"},
	}
	for _, tc := range cases {
		got, err := ResolvePath(tc.raw, tc.ext)
		if err != nil {
			t.Fatalf("ResolvePath(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ResolvePath(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestResolvePathRejectsEscapes(t *testing.T) {
	for _, raw := range []string{"", "   ", "..", "../etc/passwd", "a/../../b.txt", "src/../../x.py"} {
		if _, err := ResolvePath(raw, ".py"); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("ResolvePath(%q): expected ErrInvalidPath, got %v", raw, err)
		}
	}
}

func TestDefaultExtension(t *testing.T) {
	cases := []struct {
		stack []string
		want  string
	}{
		{[]string{"Python", "FastAPI"}, ".py"},
		{[]string{"TypeScript", "React"}, ".ts"},
		{[]string{"React", "Vite"}, ".jsx"},
		{[]string{"Go", "Postgres"}, ".go"},
		{nil, ".py"},
	}
	for _, tc := range cases {
		if got := DefaultExtension(tc.stack); got != tc.want {
			t.Fatalf("DefaultExtension(%v) = %q, want %q", tc.stack, got, tc.want)
		}
	}
}

func TestFileType(t *testing.T) {
	cases := map[string]string{
		"main.py":       "python",
		"app.TSX":       "typescript",
		"notes.md":      "markdown",
		"weird.zig":     "text",
		"styles.css":    "css",
		"data/cfg.json": "json",
	}
	for path, want := range cases {
		if got := FileType(path); got != want {
			t.Fatalf("FileType(%q) = %q, want %q", path, got, want)
		}
	}
}
