package problem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidFrontmatter is returned when YAML frontmatter parsing fails
	ErrInvalidFrontmatter = errors.New("invalid YAML frontmatter")

	// ErrNoStatement is returned when a problem file has no body
	ErrNoStatement = errors.New("problem file has no statement")

	// ErrNoProblemFile is returned when a FileSource has no problem path
	ErrNoProblemFile = errors.New("no problem file given")
)

// Source produces the current problem context. It is called on every
// prompt so edits to the user's code are picked up.
type Source interface {
	Snapshot() (Context, error)
}

// Definition is a problem file: YAML frontmatter plus a markdown statement
type Definition struct {
	URL      string `yaml:"url"`
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Language string `yaml:"language"`
	CodeFile string `yaml:"code_file"`

	// Statement is the markdown content after the frontmatter
	Statement string `yaml:"-"`

	// FilePath is the file this definition was loaded from
	FilePath string `yaml:"-"`
}

// ResolvedID returns the explicit id, the slug of the URL, or a key
// derived from the file name, in that order
func (d *Definition) ResolvedID() string {
	switch {
	case strings.TrimSpace(d.ID) != "":
		return strings.TrimSpace(d.ID)
	case d.URL != "":
		return SlugFromURL(d.URL)
	case d.FilePath != "":
		stem := strings.TrimSuffix(filepath.Base(d.FilePath), filepath.Ext(d.FilePath))
		return "local-" + stem
	default:
		return UnknownID
	}
}

// ParseProblemMarkdown parses a problem file. Frontmatter is optional;
// without it the whole file is the statement.
func ParseProblemMarkdown(content string) (*Definition, error) {
	frontmatter, body, ok := parseFrontmatter(content)

	var def Definition
	if ok {
		if err := yaml.Unmarshal([]byte(frontmatter), &def); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	} else {
		body = strings.TrimSpace(content)
	}

	if body == "" {
		return nil, ErrNoStatement
	}
	def.Statement = body
	return &def, nil
}

// LoadDefinition reads and parses a problem file
func LoadDefinition(path string) (*Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading problem file: %w", err)
	}

	def, err := ParseProblemMarkdown(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.FilePath = path
	return def, nil
}

// parseFrontmatter extracts YAML frontmatter and body from markdown content.
// Frontmatter must be enclosed in --- markers at the start of the file.
func parseFrontmatter(content string) (frontmatter, body string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "---") {
		return "", "", false
	}

	rest := strings.TrimLeft(content[3:], "\r\n")
	endIdx := strings.Index(rest, "\n---")
	if endIdx == -1 {
		return "", "", false
	}

	frontmatter = strings.TrimSpace(rest[:endIdx])
	body = strings.TrimSpace(rest[endIdx+4:])
	return frontmatter, body, true
}

// FileSource reads the problem and the user's code from disk on every
// Snapshot, the way an editor integration would re-read the buffer
type FileSource struct {
	ProblemPath string

	// CodePath overrides the frontmatter code_file
	CodePath string

	// Language overrides the frontmatter language code
	Language string
}

// Snapshot implements Source
func (s *FileSource) Snapshot() (Context, error) {
	if s.ProblemPath == "" {
		return Context{}, ErrNoProblemFile
	}

	def, err := LoadDefinition(s.ProblemPath)
	if err != nil {
		return Context{}, err
	}

	codePath := s.CodePath
	if codePath == "" && def.CodeFile != "" {
		codePath = def.CodeFile
		if !filepath.IsAbs(codePath) {
			codePath = filepath.Join(filepath.Dir(s.ProblemPath), codePath)
		}
	}

	var code string
	if codePath != "" {
		data, err := os.ReadFile(codePath)
		if err != nil {
			return Context{}, fmt.Errorf("error reading code file: %w", err)
		}
		code = string(data)
	}

	lang := s.Language
	if lang == "" {
		lang = def.Language
	}
	if lang == "" && codePath != "" {
		lang = LanguageFromPath(codePath)
	}

	return Context{
		ID:        def.ResolvedID(),
		Statement: def.Statement,
		UserCode:  code,
		Language:  LanguageLabel(lang),
	}, nil
}

// StaticSource always returns the same context
type StaticSource struct {
	Context Context
}

// Snapshot implements Source
func (s StaticSource) Snapshot() (Context, error) {
	return s.Context, nil
}

var (
	_ Source = (*FileSource)(nil)
	_ Source = StaticSource{}
)
