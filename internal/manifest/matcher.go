package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreFile is read from the deployment root when present
const DefaultIgnoreFile = ".deployignore"

// Pattern is a single include or exclude rule
type Pattern interface {
	Match(path string) bool
	String() string
}

// prefixPattern matches paths that start with a literal string
type prefixPattern struct {
	prefix string
}

func (p *prefixPattern) Match(path string) bool {
	return strings.HasPrefix(path, p.prefix)
}

func (p *prefixPattern) String() string {
	return p.prefix
}

// globPattern is anchored at the start of the path but not at its end: it
// matches when any leading part of the path matches the glob, so "dist/*"
// covers "dist/assets/app.js" and "*.ts" covers "main.tsx".
type globPattern struct {
	glob string
	// a trailing "/**" also matches the bare directory name, which must
	// then end at a separator: "dist/**" covers "dist/a" but not "distro"
	dirSuffix bool
}

func (g *globPattern) Match(p string) bool {
	for i := range p {
		if i == 0 {
			continue
		}
		if g.dirSuffix && p[i] != '/' && !strings.HasSuffix(p[:i], "/") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(g.glob, "/**"), p[:i]); ok {
				continue
			}
		}
		if ok, _ := doublestar.Match(g.glob, p[:i]); ok {
			return true
		}
	}
	ok, _ := doublestar.Match(g.glob, p)
	return ok
}

func (g *globPattern) String() string {
	return g.glob
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// NormPath turns an OS specific relative path into the slash separated form
// patterns are matched against
func NormPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "./")
	if p == "." {
		return ""
	}
	return p
}

// CompilePattern turns a user supplied pattern into a Pattern
func CompilePattern(pattern string) (Pattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("manifest: empty pattern")
	}

	norm := NormPath(pattern)
	if isGlob(norm) {
		if !doublestar.ValidatePattern(norm) {
			return nil, fmt.Errorf("manifest: invalid glob %q", pattern)
		}
		return &globPattern{glob: norm, dirSuffix: strings.HasSuffix(norm, "/**")}, nil
	}

	return &prefixPattern{prefix: norm}, nil
}

// Matcher decides which files become part of a manifest
type Matcher struct {
	include []Pattern
	exclude []Pattern
	ignore  *gitignore.GitIgnore
}

// NewMatcher compiles include and exclude patterns. An empty include list
// accepts everything that is not excluded.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range include {
		compiled, err := CompilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("include: %w", err)
		}
		m.include = append(m.include, compiled)
	}
	for _, p := range exclude {
		compiled, err := CompilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}
		m.exclude = append(m.exclude, compiled)
	}
	return m, nil
}

// LoadIgnoreFile adds the gitignore style rules in path as exclusions.
// A missing file is not an error; found reports whether rules were loaded.
func (m *Matcher) LoadIgnoreFile(path string) (found bool, err error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("manifest: ignore file %q: %w", path, err)
	}

	ignore, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return false, fmt.Errorf("manifest: ignore file %q: %w", path, err)
	}

	m.ignore = ignore
	slog.Debug("manifest loaded ignore file", "path", path)
	return true, nil
}

// ShouldInclude reports whether the file at relPath belongs in the manifest.
// Only leaf paths are tested; directories are always traversed.
func (m *Matcher) ShouldInclude(relPath string) bool {
	if m == nil {
		return true
	}

	p := NormPath(relPath)

	if len(m.include) > 0 && !matchAny(m.include, p) {
		return false
	}

	if matchAny(m.exclude, p) {
		return false
	}

	if m.ignore != nil && m.ignore.MatchesPath(p) {
		return false
	}

	return true
}

func matchAny(patterns []Pattern, p string) bool {
	for _, pattern := range patterns {
		if pattern.Match(p) {
			return true
		}
	}
	return false
}
