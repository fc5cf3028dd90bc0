package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicySelect(t *testing.T) {
	seven := []string{"a", "b", "c", "d", "e", "f", "g"}

	tests := []struct {
		name          string
		policy        Policy
		entries       []string
		wantSelected  []string
		wantRemaining []string
	}{
		{name: "all", policy: AllPolicy(), entries: seven, wantSelected: seven, wantRemaining: []string{}},
		{name: "batch of 5", policy: BatchPolicy(5), entries: seven, wantSelected: seven[:5], wantRemaining: []string{"f", "g"}},
		{name: "batch larger than queue", policy: BatchPolicy(5), entries: []string{"a", "b"}, wantSelected: []string{"a", "b"}, wantRemaining: []string{}},
		{name: "single", policy: SinglePolicy(), entries: []string{"a", "b", "c"}, wantSelected: []string{"a"}, wantRemaining: []string{"b", "c"}},
		{name: "single on empty", policy: SinglePolicy(), entries: []string{}, wantSelected: nil, wantRemaining: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			selected, remaining := tc.policy.Select(tc.entries)
			assert.Equal(t, tc.wantSelected, selected)
			assert.Equal(t, tc.wantRemaining, remaining)
		})
	}
}

func TestPolicySelect_DoesNotAliasInput(t *testing.T) {
	entries := []string{"a", "b", "c"}
	selected, remaining := SinglePolicy().Select(entries)
	selected[0] = "x"
	remaining[0] = "y"
	assert.Equal(t, []string{"a", "b", "c"}, entries)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("batch", 0)
	require.NoError(t, err)
	assert.Equal(t, BatchPolicy(DefaultBatchSize), p)
	assert.Equal(t, "batch(5)", p.String())

	p, err = ParsePolicy("single", 10)
	require.NoError(t, err)
	assert.Equal(t, SinglePolicy(), p)

	p, err = ParsePolicy("all", 0)
	require.NoError(t, err)
	assert.Equal(t, "all", p.String())

	_, err = ParsePolicy("random", 1)
	assert.Error(t, err)
}
