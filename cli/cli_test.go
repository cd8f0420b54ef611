package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	t.Parallel()

	got, err := ParsePairs([]string{"amount=250", "rate=0.5", "urgent=true", "who=alice", "empty="})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"amount": int64(250),
		"rate":   0.5,
		"urgent": true,
		"who":    "alice",
		"empty":  "",
	}, got)
}

func TestParsePairs_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"amount", "=5"} {
		_, err := ParsePairs([]string{in})
		require.ErrorIs(t, err, ErrInvalidPair, in)
	}
}

func TestParsePairs_Empty(t *testing.T) {
	t.Parallel()

	got, err := ParsePairs(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBanner(t *testing.T) {
	t.Parallel()

	if suppressBanner() {
		t.Skip("banner suppressed in this environment")
	}

	out := Banner("approval\nNew", 12)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, "╒══════════╕", lines[0])
	assert.Equal(t, "│ approval │", lines[1])
	assert.Equal(t, "│   New    │", lines[2])
	assert.Equal(t, "└──────────┘", lines[3])
}

func TestCenter_Truncates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abcd…", center("abcdefgh", 5))
	assert.Equal(t, " ab  ", center("ab", 5))
}
