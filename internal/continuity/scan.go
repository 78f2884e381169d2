// SPDX-License-Identifier: MIT

package continuity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SessionStats aggregates the reflections of one session.
type SessionStats struct {
	SessionID string    `json:"session_id"`
	Count     int       `json:"count"`
	AvgDrift  float64   `json:"avg_drift"`
	Lawful    bool      `json:"lawful"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ScanResult is the variant-level view over all sessions of a user.
type ScanResult struct {
	UserID       string         `json:"user_id"`
	SessionCount int            `json:"session_count"`
	Sessions     []SessionStats `json:"sessions"`
	AvgDrift     float64        `json:"avg_drift"`
	Lawful       bool           `json:"lawful"`
	Summary      string         `json:"summary,omitempty"`
}

// ContextResult is the continuity view over a recall window.
type ContextResult struct {
	UserID          string  `json:"user_id"`
	ThreadID        string  `json:"thread_id"`
	SessionID       string  `json:"session_id,omitempty"`
	ReflectionCount int     `json:"reflection_count"`
	AvgDrift        float64 `json:"avg_drift"`
	Lawful          bool    `json:"lawful"`
	Summary         string  `json:"summary,omitempty"`
}

// Scan groups reflections by session and computes drift statistics.
// The overall average drift is the mean of the per-session averages, and
// the result is lawful only when every session is lawful.
func Scan(userID string, reflections []Reflection, threshold float64, withSummary bool) ScanResult {
	bySession := make(map[string][]Reflection)
	for _, r := range reflections {
		bySession[r.SessionID] = append(bySession[r.SessionID], r)
	}

	sessions := make([]SessionStats, 0, len(bySession))
	for id, rs := range bySession {
		stats := SessionStats{SessionID: id, Count: len(rs)}
		var sum float64
		for i, r := range rs {
			sum += r.DriftScore
			if i == 0 || r.CreatedAt.Before(stats.FirstSeen) {
				stats.FirstSeen = r.CreatedAt
			}
			if r.CreatedAt.After(stats.LastSeen) {
				stats.LastSeen = r.CreatedAt
			}
		}
		stats.AvgDrift = sum / float64(len(rs))
		stats.Lawful = LawfulDrift(stats.AvgDrift, threshold)
		sessions = append(sessions, stats)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].SessionID < sessions[j].SessionID })

	result := ScanResult{
		UserID:       userID,
		SessionCount: len(sessions),
		Sessions:     sessions,
		Lawful:       true,
	}
	var sum float64
	for _, s := range sessions {
		sum += s.AvgDrift
		if !s.Lawful {
			result.Lawful = false
		}
	}
	if len(sessions) > 0 {
		result.AvgDrift = sum / float64(len(sessions))
	}
	if withSummary {
		result.Summary = result.renderSummary()
	}
	return result
}

// ScanWindow computes the continuity view over an already recalled window.
func ScanWindow(userID, threadID, sessionID string, window []Reflection, threshold float64, withSummary bool) ContextResult {
	result := ContextResult{
		UserID:          userID,
		ThreadID:        threadID,
		SessionID:       sessionID,
		ReflectionCount: len(window),
		Lawful:          true,
	}
	var sum float64
	for _, r := range window {
		sum += r.DriftScore
	}
	if len(window) > 0 {
		result.AvgDrift = sum / float64(len(window))
		result.Lawful = LawfulDrift(result.AvgDrift, threshold)
	}
	if withSummary {
		result.Summary = result.renderSummary(window)
	}
	return result
}

func (s ScanResult) renderSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d session(s) for %s, avg drift %.4f", s.SessionCount, s.UserID, s.AvgDrift)
	if s.Lawful {
		b.WriteString(", all sessions lawful")
	} else {
		unlawful := 0
		for _, sess := range s.Sessions {
			if !sess.Lawful {
				unlawful++
			}
		}
		fmt.Fprintf(&b, ", %d session(s) exceed the drift threshold", unlawful)
	}
	return b.String()
}

func (c ContextResult) renderSummary(window []Reflection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d reflection(s) in thread %s, avg drift %.4f", c.ReflectionCount, c.ThreadID, c.AvgDrift)
	if c.ReflectionCount > 0 {
		latest := window[0]
		fmt.Fprintf(&b, ", latest sealed %q at %s", latest.Seal, latest.CreatedAt.UTC().Format(time.RFC3339))
	}
	if !c.Lawful {
		b.WriteString(", drift unlawful")
	}
	return b.String()
}
