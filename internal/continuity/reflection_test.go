// SPDX-License-Identifier: MIT

package continuity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	r := Reflection{UserID: "phil"}
	r.ApplyDefaults()

	assert.Equal(t, DefaultThreadID, r.ThreadID)
	assert.Equal(t, DefaultSlideID, r.SlideID)
	assert.Equal(t, DefaultGlyphEcho, r.GlyphEcho)
	assert.Equal(t, DefaultSeal, r.Seal)
	assert.Equal(t, DefaultContent, r.Content)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	r := Reflection{
		UserID:   "phil",
		ThreadID: "continuity_diary",
		Seal:     "provisional",
		Content:  "observed drift",
	}
	r.ApplyDefaults()

	assert.Equal(t, "continuity_diary", r.ThreadID)
	assert.Equal(t, "provisional", r.Seal)
	assert.Equal(t, "observed drift", r.Content)
}

func TestChecksumDeterministic(t *testing.T) {
	r := Reflection{
		UserID:     "phil",
		ThreadID:   "continuity_diary",
		SessionID:  "continuity",
		SlideID:    "t-001",
		GlyphEcho:  DefaultGlyphEcho,
		DriftScore: 0.05,
		Seal:       "lawful",
		Content:    "hello",
	}
	first := r.ComputeChecksum()
	second := r.ComputeChecksum()

	require.Len(t, first, 64)
	assert.Equal(t, first, second)
}

func TestChecksumCoversAllFields(t *testing.T) {
	base := Reflection{
		UserID:     "phil",
		ThreadID:   "t",
		SessionID:  "s",
		SlideID:    "sl",
		GlyphEcho:  "g",
		DriftScore: 0.01,
		Seal:       "lawful",
		Content:    "c",
	}
	mutations := []func(*Reflection){
		func(r *Reflection) { r.UserID = "dave" },
		func(r *Reflection) { r.ThreadID = "t2" },
		func(r *Reflection) { r.SessionID = "s2" },
		func(r *Reflection) { r.SlideID = "sl2" },
		func(r *Reflection) { r.GlyphEcho = "g2" },
		func(r *Reflection) { r.DriftScore = 0.02 },
		func(r *Reflection) { r.Seal = "provisional" },
		func(r *Reflection) { r.Content = "c2" },
	}

	want := base.ComputeChecksum()
	for i, mutate := range mutations {
		r := base
		mutate(&r)
		if r.ComputeChecksum() == want {
			t.Errorf("mutation %d did not change the checksum", i)
		}
	}
}

func TestChecksumDriftPrecision(t *testing.T) {
	a := Reflection{UserID: "phil", DriftScore: 0.05}
	b := Reflection{UserID: "phil", DriftScore: 0.05000004}

	// Sub-precision drift noise must not break verification.
	assert.Equal(t, a.ComputeChecksum(), b.ComputeChecksum())
}

func TestVerifyChecksum(t *testing.T) {
	r := Reflection{UserID: "phil", Content: "x", DriftScore: 0.01}
	assert.False(t, r.VerifyChecksum(), "unsealed reflection must not verify")

	r.SealChecksum()
	assert.True(t, r.VerifyChecksum())

	r.Content = "tampered"
	assert.False(t, r.VerifyChecksum())
}

func TestCanonicalStringShape(t *testing.T) {
	r := Reflection{
		UserID:     "phil",
		ThreadID:   "t",
		SessionID:  "s",
		SlideID:    "sl",
		GlyphEcho:  "g",
		DriftScore: 0.1234,
		Seal:       "lawful",
		Content:    "c",
	}
	got := r.CanonicalString()
	assert.Equal(t, "phil|t|s|sl|g|0.1234|lawful|c", got)
	assert.Equal(t, 8, len(strings.Split(got, "|")))
}

func TestLawfulDrift(t *testing.T) {
	tests := []struct {
		name      string
		drift     float64
		threshold float64
		want      bool
	}{
		{"zero", 0, 0.05, true},
		{"at threshold", 0.05, 0.05, true},
		{"above threshold", 0.0501, 0.05, false},
		{"negative within", -0.03, 0.05, true},
		{"negative beyond", -0.06, 0.05, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LawfulDrift(tt.drift, tt.threshold))
		})
	}
}
