// Package gitignore matches paths against .gitignore rules so that
// document discovery skips files a project already excludes. The
// supported syntax follows https://git-scm.com/docs/gitignore:
// wildcards, character classes, negation, directory-only and anchored
// patterns, and nested ignore files scoped to their own directory.
package gitignore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Ruleset holds an ordered list of ignore rules. Rules are evaluated in
// the order they were added and the last matching rule wins, so a later
// negation can re-include a path an earlier rule ignored.
//
// A Ruleset is not safe for concurrent mutation; load all rules before
// sharing it across goroutines.
type Ruleset struct {
	entries []entry
}

// entry is one compiled pattern line. base scopes entries read from a
// nested ignore file to paths under that directory.
type entry struct {
	re       *regexp.Regexp
	base     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// New returns a Ruleset with no rules. An empty Ruleset ignores nothing.
func New() *Ruleset {
	return &Ruleset{}
}

// AddPattern adds one pattern line that applies to the whole tree.
// Blank lines and comments are dropped.
func (rs *Ruleset) AddPattern(pattern string) {
	rs.AddPatternAt(pattern, "")
}

// AddPatternAt adds one pattern line that only applies to paths under
// base. Pass base as a slash-separated path relative to the tree root,
// or "" for the root itself.
func (rs *Ruleset) AddPatternAt(pattern, base string) {
	if e, ok := compileEntry(pattern, base); ok {
		rs.entries = append(rs.entries, e)
	}
}

// LoadFile reads pattern lines from an ignore file, scoping them to
// base the way AddPatternAt does.
func (rs *Ruleset) LoadFile(path, base string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read ignore file: %w", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		rs.AddPatternAt(strings.TrimSuffix(line, "\r"), base)
	}
	return nil
}

// Match reports whether a path should be ignored. The path must be
// relative to the tree the rules were loaded for; separators are
// normalized, so native paths are fine.
func (rs *Ruleset) Match(path string, isDir bool) bool {
	p := filepath.ToSlash(path)

	// Later rules override earlier ones, so the scan runs newest first.
	for i := len(rs.entries) - 1; i >= 0; i-- {
		if e := rs.entries[i]; e.matches(p, isDir) {
			return !e.negate
		}
	}
	return false
}

// compileEntry parses one pattern line. ok is false for blank lines and
// comments, which carry no rule.
func compileEntry(line, base string) (e entry, ok bool) {
	// "\ " at the end of a line keeps the space through trimming.
	keepTrailingSpace := strings.HasSuffix(line, `\ `)

	pat := strings.TrimSpace(line)
	if pat == "" || (strings.HasPrefix(pat, "#") && !strings.HasPrefix(pat, `\#`)) {
		return entry{}, false
	}

	e = entry{base: base}

	switch {
	case strings.HasPrefix(pat, `\#`), strings.HasPrefix(pat, `\!`):
		pat = pat[1:]
	case strings.HasPrefix(pat, "!"):
		e.negate = true
		pat = pat[1:]
	}

	if keepTrailingSpace && strings.HasSuffix(pat, `\`) {
		pat = strings.TrimSuffix(pat, `\`) + " "
	}

	if strings.HasSuffix(pat, "/") {
		e.dirOnly = true
		pat = strings.TrimSuffix(pat, "/")
	}
	if strings.HasPrefix(pat, "/") {
		e.anchored = true
		pat = strings.TrimPrefix(pat, "/")
	}

	// A separator anywhere else in the pattern also anchors it:
	// "doc/frotz" means "/doc/frotz", never "**/doc/frotz".
	if strings.Contains(pat, "/") && !strings.HasPrefix(pat, "**/") && !strings.HasPrefix(pat, "*") {
		e.anchored = true
	}

	e.re = regexp.MustCompile("^" + regexFor(pat) + "$")
	return e, true
}

// matches reports whether one rule applies to the path.
func (e entry) matches(path string, isDir bool) bool {
	if e.base != "" {
		switch {
		case path == e.base:
			path = path[strings.LastIndexByte(path, '/')+1:]
		case strings.HasPrefix(path, e.base+"/"):
			path = path[len(e.base)+1:]
		default:
			return false
		}
	}

	segs := strings.Split(path, "/")

	if e.anchored {
		if e.re.MatchString(path) {
			return !e.dirOnly || isDir
		}
		// An anchored pattern naming a parent directory ignores
		// everything beneath it.
		for i := 1; i < len(segs); i++ {
			if e.re.MatchString(strings.Join(segs[:i], "/")) {
				return true
			}
		}
		return false
	}

	if e.dirOnly {
		// "temp/" matches a temp directory anywhere, and through the
		// parent scan everything inside one.
		for i, seg := range segs {
			if e.re.MatchString(seg) {
				return i < len(segs)-1 || isDir
			}
		}
		return false
	}

	if e.re.MatchString(segs[len(segs)-1]) || e.re.MatchString(path) {
		return true
	}
	// A pattern matching any parent directory component ignores the
	// path too.
	for _, seg := range segs[:len(segs)-1] {
		if e.re.MatchString(seg) {
			return true
		}
	}
	return false
}

// regexFor translates a pattern, already stripped of its markers, into
// a regular expression body.
func regexFor(pat string) string {
	var b strings.Builder

	for i := 0; i < len(pat); {
		switch c := pat[i]; c {
		case '*':
			switch {
			case strings.HasPrefix(pat[i:], "**/"):
				// Zero or more leading directories.
				b.WriteString("(?:.*/)?")
				i += 3
			case strings.HasPrefix(pat[i:], "**") && (i == 0 || pat[i-1] == '/'):
				b.WriteString(".*")
				i += 2
			default:
				// A single star never crosses a separator.
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			if j := strings.IndexByte(pat[i:], ']'); j > 0 {
				class := pat[i : i+j+1]
				// Gitignore negates classes with '!', regexp with '^'.
				if strings.HasPrefix(class, "[!") {
					class = "[^" + class[2:]
				}
				b.WriteString(class)
				i += j + 1
			} else {
				b.WriteString(regexp.QuoteMeta("["))
				i++
			}
		case '\\':
			if i+1 < len(pat) {
				b.WriteString(regexp.QuoteMeta(string(pat[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(`\`))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
