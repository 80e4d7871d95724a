// --- START OF FINAL REVISED FILE pkg/util/util.go ---
package util

import (
	"path"
	"path/filepath"
	"strings"
)

// MatchesGitignore reports whether relPath (relative to the scanned root,
// either separator style) matches a gitignore-style pattern.
//
// Supported syntax: shell globs per segment ('*', '?', '[...]'), "**" as a
// whole segment matching zero or more directories, and anchoring. A pattern
// is anchored to the root when isRooted is set (it began with '/') or when it
// contains a '/' of its own; otherwise it matches at any depth.
func MatchesGitignore(pattern, relPath string, isRooted bool) bool {
	pattern = strings.Trim(filepath.ToSlash(pattern), "/")
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	if pattern == "" || relPath == "" || relPath == "." {
		return false
	}
	if !isRooted && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(relPath, "/"))
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			// Collapse runs of "**".
			for len(pat) > 1 && pat[1] == "**" {
				pat = pat[1:]
			}
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
		if ok, err := path.Match(pat[0], segs[0]); err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// HasExtension reports whether name ends with one of exts, ignoring case.
// exts entries carry their leading dot.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// NormalizeExtensions lower-cases extensions and adds a missing leading dot.
// Empty entries are dropped.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// --- END OF FINAL REVISED FILE pkg/util/util.go ---
