package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short string unchanged", input: "hello", maxLen: 10, expected: "hello"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, expected: "hello"},
		{name: "long string truncated", input: "hello world this is a long string", maxLen: 15, expected: "hello world ..."},
		{name: "newlines collapsed", input: "step failed:\n  connection\trefused", maxLen: 0, expected: "step failed: connection refused"},
		{name: "unicode kept whole", input: "héllo wörld", maxLen: 8, expected: "héllo..."},
		{name: "tiny max clamped", input: "abcdef", maxLen: 1, expected: "a..."},
		{name: "empty", input: "", maxLen: 10, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SingleLine(tt.input, tt.maxLen))
		})
	}
}
