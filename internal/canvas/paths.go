package canvas

import (
	"fmt"
	"path"
	"strings"
)

// defaultExtRules maps tech-stack keywords to the extension given to plan
// entries whose basename carries none. First match wins, ".py" otherwise.
var defaultExtRules = []struct {
	keyword string
	ext     string
}{
	{"typescript", ".ts"},
	{"next", ".tsx"},
	{"react", ".jsx"},
	{"javascript", ".js"},
	{"node", ".js"},
	{"go", ".go"},
	{"golang", ".go"},
	{"rust", ".rs"},
	{"java", ".java"},
	{"html", ".html"},
	{"css", ".css"},
	{"python", ".py"},
}

// DefaultExtension picks the placeholder extension for a project's declared
// tech stack.
func DefaultExtension(techStack []string) string {
	for _, tech := range techStack {
		lowered := strings.ToLower(tech)
		for _, rule := range defaultExtRules {
			if strings.Contains(lowered, rule.keyword) {
				return rule.ext
			}
		}
	}
	return ".py"
}

// fileTypeByExt maps extensions to the editor language tag stored on file
// nodes and reported by the read API.
var fileTypeByExt = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".go":   "go",
	".rs":   "rust",
	".java": "java",
	".json": "json",
	".html": "html",
	".css":  "css",
	".md":   "markdown",
	".txt":  "text",
}

// FileType reports the language tag for a workspace-relative path, "text"
// when the extension is unknown.
func FileType(relPath string) string {
	if t, ok := fileTypeByExt[strings.ToLower(path.Ext(relPath))]; ok {
		return t
	}
	return "text"
}

// ResolvePath canonicalizes a raw plan path into a workspace-relative,
// forward-slash path. Leading slashes are stripped, so an "absolute" input
// is re-rooted at the workspace. Empty and root-escaping inputs are rejected
// with ErrInvalidPath. When the basename has no extension, defaultExt is
// appended so every file node materializes as a real file.
func ResolvePath(raw, defaultExt string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	cleaned = strings.Trim(cleaned, "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(cleaned, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, raw)
	}
	cleaned = path.Clean(cleaned)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the workspace root", ErrInvalidPath, raw)
	}
	if path.Ext(path.Base(cleaned)) == "" && defaultExt != "" {
		cleaned += defaultExt
	}
	return cleaned, nil
}
