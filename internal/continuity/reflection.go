// SPDX-License-Identifier: MIT

// Package continuity implements the verification logic of the lawful
// reflection cycle: checksum computation, drift lawfulness and session
// level aggregation over stored reflections.
package continuity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Default field values applied when a caller omits them on save.
const (
	DefaultThreadID   = "assistant-run"
	DefaultSlideID    = "t-001"
	DefaultGlyphEcho  = "🪞"
	DefaultSeal       = "lawful"
	DefaultDriftScore = 0.05
	DefaultContent    = "(no content provided)"
)

// DefaultDriftThreshold is the lawful drift bound: |drift| <= threshold.
const DefaultDriftThreshold = 0.05

// Reflection is a single memory record.
type Reflection struct {
	ID         int64      `json:"reflection_id"`
	UserID     string     `json:"user_id"`
	ThreadID   string     `json:"thread_id"`
	SessionID  string     `json:"session_id"`
	SlideID    string     `json:"slide_id"`
	GlyphEcho  string     `json:"glyph_echo"`
	DriftScore float64    `json:"drift_score"`
	Seal       string     `json:"seal"`
	Content    string     `json:"content"`
	Checksum   string     `json:"checksum"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ApplyDefaults fills unset fields with the canonical defaults.
func (r *Reflection) ApplyDefaults() {
	if r.ThreadID == "" {
		r.ThreadID = DefaultThreadID
	}
	if r.SlideID == "" {
		r.SlideID = DefaultSlideID
	}
	if r.GlyphEcho == "" {
		r.GlyphEcho = DefaultGlyphEcho
	}
	if r.Seal == "" {
		r.Seal = DefaultSeal
	}
	if r.Content == "" {
		r.Content = DefaultContent
	}
}

// CanonicalString renders the checksum input form of the reflection.
// Drift is fixed to four decimals, the precision reflections are archived
// with, so the checksum survives a float round trip through the database.
func (r *Reflection) CanonicalString() string {
	return strings.Join([]string{
		r.UserID,
		r.ThreadID,
		r.SessionID,
		r.SlideID,
		r.GlyphEcho,
		fmt.Sprintf("%.4f", r.DriftScore),
		r.Seal,
		r.Content,
	}, "|")
}

// ComputeChecksum returns the hex encoded sha256 of the canonical string.
func (r *Reflection) ComputeChecksum() string {
	sum := sha256.Sum256([]byte(r.CanonicalString()))
	return hex.EncodeToString(sum[:])
}

// SealChecksum computes and stores the checksum on the reflection.
func (r *Reflection) SealChecksum() {
	r.Checksum = r.ComputeChecksum()
}

// VerifyChecksum reports whether the stored checksum matches the record.
// A reflection without a stored checksum never verifies.
func (r *Reflection) VerifyChecksum() bool {
	return r.Checksum != "" && r.Checksum == r.ComputeChecksum()
}

// LawfulDrift reports whether d is within the lawful threshold.
func LawfulDrift(d, threshold float64) bool {
	if d < 0 {
		d = -d
	}
	return d <= threshold
}
