package cli

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short ascii untouched", "hello", 10, "hello"},
		{"long ascii cut", "hello world", 5, "hello..."},
		{"newlines flattened", "a\nb\nc", 10, "a b c"},
		{"accented text cut on rune boundary", "educação básica", 7, "educaçã..."},
		{"exact rune length untouched", "ação", 4, "ação"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
			}
		})
	}
}
