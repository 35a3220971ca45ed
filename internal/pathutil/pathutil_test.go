package pathutil

import "testing"

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		prefix string
		want   bool
	}{
		{"exact match", "/tmp", "/tmp", true},
		{"child", "/tmp/work/a.c", "/tmp", true},
		{"trailing slash on prefix", "/tmp/work", "/tmp/", true},
		{"sibling with shared text", "/tmpfoo", "/tmp", false},
		{"root covers everything", "/etc/passwd", "/", true},
		{"parent does not match child prefix", "/tmp", "/tmp/work", false},
		{"dot segments cleaned", "/tmp/./work/../work/a.c", "/tmp/work", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPrefix(tt.path, tt.prefix); got != tt.want {
				t.Errorf("HasPrefix(%q, %q) = %v, want %v", tt.path, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.c", "main.c", true},
		{"*.c", "main.cc", false},
		{"*.c", "a/b.c", false}, // * never crosses a separator
		{"?.c", "a.c", true},
		{"?.c", "ab.c", false},
		{"[mt]*.c", "main.c", true},
		{"[mt]*.c", "test.c", true},
		{"[mt]*.c", "util.c", false},
		{"exact.txt", "exact.txt", true},
		{"exact.txt", "exactAtxt", false}, // . is literal
	}
	for _, tt := range tests {
		re, err := CompileGlob(tt.pattern)
		if err != nil {
			t.Fatalf("CompileGlob(%q): %v", tt.pattern, err)
		}
		if got := re.MatchString(tt.name); got != tt.want {
			t.Errorf("glob %q against %q = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestCompileGlobUnterminatedClass(t *testing.T) {
	re, err := CompileGlob("[abc")
	if err != nil {
		t.Fatalf("CompileGlob: %v", err)
	}
	if !re.MatchString("[abc") {
		t.Error("unterminated class should match itself literally")
	}
	if re.MatchString("a") {
		t.Error("unterminated class must not act as a character class")
	}
}
