package config

import (
	"path"
	"strings"
)

// Path rules work on slash-separated paths relative to the project
// root. A ** segment spans any number of path segments; every other
// segment uses path.Match syntax (*, ?, character classes).

// HonorGitignore reports whether scanning should fold .gitignore files
// into its exclusion rules. Unset means yes.
func (p PathsConfig) HonorGitignore() bool {
	return p.UseGitignore == nil || *p.UseGitignore
}

// ExcludesDir reports whether rel names a directory the scan should
// skip entirely. Only tree patterns (ending in /**) and patterns whose
// last segment has no glob characters rule out whole directories; a
// file glob like **/*.aux never does.
func (p PathsConfig) ExcludesDir(rel string) bool {
	for _, pat := range p.Exclude {
		if tree, ok := strings.CutSuffix(pat, "/**"); ok {
			if matchGlob(tree, rel) {
				return true
			}
			continue
		}
		if !strings.ContainsAny(path.Base(pat), "*?[") && matchGlob(pat, rel) {
			return true
		}
	}
	return false
}

// ExcludesFile reports whether an exclude pattern rules out rel.
func (p PathsConfig) ExcludesFile(rel string) bool {
	for _, pat := range p.Exclude {
		if matchGlob(pat, rel) {
			return true
		}
	}
	return false
}

// Included reports whether rel passes the include list. An empty list
// admits every path.
func (p PathsConfig) Included(rel string) bool {
	if len(p.Include) == 0 {
		return true
	}
	for _, pat := range p.Include {
		if matchGlob(pat, rel) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, rel string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

// matchSegments consumes pattern segments against path segments. A **
// tries every possible split point, so patterns like papers/**/*.tex
// cover both papers/a.tex and papers/2024/drafts/a.tex.
func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pat[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], segs[0])
		if err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
