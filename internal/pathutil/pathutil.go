// Package pathutil provides path helpers shared by the allow-list engine and
// the tool capability: component-wise ancestor tests and glob matching for
// file basenames.
package pathutil

import (
	"path/filepath"
	"regexp"
	"strings"
)

// HasPrefix reports whether prefix is the path itself or a component-wise
// ancestor of path. Unlike strings.HasPrefix, "/tmp" covers "/tmp/x" but not
// "/tmpfoo". Both arguments are cleaned before comparison.
func HasPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if path == prefix {
		return true
	}
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// GlobToRegex converts a glob pattern to an anchored regexp string.
// Supports: * (any run of non-separator characters), ? (single non-separator
// character), [...] (character class). An unterminated class is escaped and
// matched literally rather than rejected.
func GlobToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	i := 0
	for i < len(pattern) {
		ch := pattern[i]
		switch ch {
		case '*':
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == ']' {
				j++ // allow ] as the first char in a class
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				b.WriteString(pattern[i : j+1])
				i = j + 1
				continue
			}
			b.WriteString(`\[`)
		case '.', '+', '^', '$', '|', '(', ')', '{', '}', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
		i++
	}
	b.WriteString("$")
	return b.String()
}

// CompileGlob compiles a glob pattern into a regexp suitable for repeated
// basename matching.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(GlobToRegex(pattern))
}
