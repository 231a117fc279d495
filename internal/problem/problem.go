// Package problem describes the coding problem a user is working on and
// where its statement and the user's code come from.
package problem

import (
	"path/filepath"
	"regexp"
	"strings"
)

// UnknownID is used when no problem slug can be derived
const UnknownID = "leetcode-unknown-problem"

// UnknownLanguage is reported when the editor language is not known
const UnknownLanguage = "UNKNOWN"

// Context is a snapshot of the problem at the time a prompt is sent
type Context struct {
	// ID keys the chat history, e.g. "leetcode-two-sum"
	ID        string
	Statement string
	UserCode  string
	// Language is the display label, e.g. "Python3"
	Language string
}

var problemPath = regexp.MustCompile(`/problems/([^/?#]+)`)

// SlugFromURL derives a history key from a problem URL
func SlugFromURL(url string) string {
	m := problemPath.FindStringSubmatch(url)
	if m == nil {
		return UnknownID
	}
	return "leetcode-" + m[1]
}

var languageLabels = map[string]string{
	"cpp":        "C++",
	"java":       "Java",
	"python":     "Python",
	"python3":    "Python3",
	"c":          "C",
	"csharp":     "C#",
	"javascript": "JavaScript",
	"typescript": "TypeScript",
	"php":        "PHP",
	"swift":      "Swift",
	"kotlin":     "Kotlin",
	"dart":       "Dart",
	"golang":     "Go",
	"ruby":       "Ruby",
	"scala":      "Scala",
	"rust":       "Rust",
	"racket":     "Racket",
	"erlang":     "Erlang",
	"elixir":     "Elixir",
}

// LanguageLabel maps an editor language code to its display label.
// Codes it does not know are returned as given.
func LanguageLabel(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return UnknownLanguage
	}
	if label, ok := languageLabels[strings.ToLower(code)]; ok {
		return label
	}
	return code
}

var extensionCodes = map[string]string{
	".cpp":   "cpp",
	".cc":    "cpp",
	".java":  "java",
	".py":    "python3",
	".c":     "c",
	".cs":    "csharp",
	".js":    "javascript",
	".ts":    "typescript",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".dart":  "dart",
	".go":    "golang",
	".rb":    "ruby",
	".scala": "scala",
	".rs":    "rust",
	".rkt":   "racket",
	".erl":   "erlang",
	".ex":    "elixir",
	".exs":   "elixir",
}

// LanguageFromPath guesses the editor language code from a file extension
func LanguageFromPath(path string) string {
	return extensionCodes[strings.ToLower(filepath.Ext(path))]
}
