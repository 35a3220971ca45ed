package tool

import "testing"

func TestCheckAllowlist(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"cc", true},
		{"gcc", true},
		{"g++", true},
		{"clang", true},
		{"clang-18", true},
		{"gcc-13", true},
		{"/usr/bin/cc", true},
		{"/usr/local/bin/clang-17", true},
		{"ar", true},
		{"make", true},
		{"pkg-config", true},

		{"sh", false},
		{"bash", false},
		{"rm", false},
		{"curl", false},
		{"python3", false},
		{"perl", false},
		{"", false},
		{"/usr/bin/", false},
		{"cc-", false},        // empty version suffix
		{"clang-beta", false}, // non-numeric suffix
		{"-18", false},
		{"gcc2", false},        // no hyphen before the digits
		{"notgcc", false},      // basename must match exactly
		{"/tmp/evil/sh", false},
	}
	for _, tt := range tests {
		if got := CheckAllowlist(tt.command); got != tt.want {
			t.Errorf("CheckAllowlist(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}
