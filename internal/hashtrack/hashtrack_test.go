package hashtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("scene events"))
	b := Fingerprint([]byte("scene events"))
	c := Fingerprint([]byte("scene events changed"))

	assert.Equal(t, a, b, "identical content must fingerprint identically")
	assert.NotEqual(t, a, c, "changed content must fingerprint differently")
	assert.NotEmpty(t, Fingerprint(nil))
}

func TestTracker_ShouldRegenerate(t *testing.T) {
	fresh := Fingerprint([]byte("events"))

	tests := []struct {
		name     string
		prior    Hashes
		force    bool
		expected bool
	}{
		{
			name:     "equal prior fingerprint skips regeneration",
			prior:    Hashes{"code0.js": fresh},
			expected: false,
		},
		{
			name:     "missing prior entry regenerates",
			prior:    Hashes{},
			expected: true,
		},
		{
			name:     "nil prior mapping regenerates",
			prior:    nil,
			expected: true,
		},
		{
			name:     "differing fingerprint regenerates",
			prior:    Hashes{"code0.js": "deadbeef"},
			expected: true,
		},
		{
			name:     "forced rebuild regenerates even when equal",
			prior:    Hashes{"code0.js": fresh},
			force:    true,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(tt.prior, tt.force)
			assert.Equal(t, tt.expected, tracker.ShouldRegenerate("code0.js", fresh))
		})
	}
}

func TestTracker_Updated(t *testing.T) {
	prior := Hashes{"code0.js": "aaaa", "code1.js": "bbbb"}
	tracker := NewTracker(prior, false)

	tracker.ShouldRegenerate("code0.js", "aaaa")
	tracker.ShouldRegenerate("code1.js", "cccc")

	updated := tracker.Updated()
	assert.Equal(t, Hashes{"code0.js": "aaaa", "code1.js": "cccc"}, updated)

	// The prior mapping is never mutated.
	assert.Equal(t, Hashes{"code0.js": "aaaa", "code1.js": "bbbb"}, prior)

	// Updated returns a copy, not the tracker's internal state.
	updated["code2.js"] = "dddd"
	assert.NotContains(t, tracker.Updated(), "code2.js")
}

func TestHashes_Clone(t *testing.T) {
	var nilHashes Hashes
	clone := nilHashes.Clone()
	assert.NotNil(t, clone)
	assert.Empty(t, clone)

	orig := Hashes{"a": "1"}
	clone = orig.Clone()
	clone["b"] = "2"
	assert.NotContains(t, orig, "b")
}
