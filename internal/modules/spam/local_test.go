package spam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassesChallenge(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
		want     bool
	}{
		{"exact", "blue", "blue", true},
		{"case and spacing", "  BLUE ", "blue", true},
		{"punctuation", "New York!", "new-york", true},
		{"accents", "Crème Brûlée", "creme brulee", true},
		{"wrong", "red", "blue", false},
		{"blank answer", "", "blue", false},
		{"blank expected", "anything", "", false},
		{"punctuation only expected", "?", "?!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PassesChallenge(tt.answer, tt.expected))
		})
	}
}

func TestChallengeCheck(t *testing.T) {
	c := NewChallenge()

	res, err := c.Check(context.Background(), Evidence{Answer: "Four", ExpectedAnswer: "four"})
	require.NoError(t, err)
	assert.Equal(t, Ham, res.Verdict)

	res, err = c.Check(context.Background(), Evidence{Answer: "five", ExpectedAnswer: "four"})
	require.NoError(t, err)
	assert.Equal(t, Indecisive, res.Verdict)
}

func TestHeuristicCheck(t *testing.T) {
	h := NewHeuristic([]string{"Crypto Giveaway", " "}, []string{"203.0.113.9", `10\.0\.0\.\d+`})

	tests := []struct {
		name string
		ev   Evidence
		want Verdict
	}{
		{"clean", Evidence{IP: "198.51.100.1", Author: "Ann", Content: "Nice post"}, Indecisive},
		{"blocked ip", Evidence{IP: "203.0.113.9", Content: "Nice post"}, Spam},
		{"blocked ip pattern", Evidence{IP: "10.0.0.42", Content: "Nice post"}, Spam},
		{"pattern is anchored", Evidence{IP: "110.0.0.42", Content: "Nice post"}, Indecisive},
		{"configured keyword", Evidence{Content: "join the CRYPTO giveaway now"}, Spam},
		{"default keyword", Evidence{Content: "best online casino"}, Spam},
		{"keyword in author url", Evidence{AuthorURL: "http://cheap-viagra.example", Content: "hi"}, Spam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Check(context.Background(), tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Verdict)
		})
	}
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, ok := ParseKind(name)
		require.True(t, ok)
		assert.Equal(t, k, got)
		assert.Equal(t, name, k.String())
	}
	_, ok := ParseKind("nope")
	assert.False(t, ok)
}
