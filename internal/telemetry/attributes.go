// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Reflection attributes
	ReflectionUserKey    = "reflection.user_id"
	ReflectionThreadKey  = "reflection.thread_id"
	ReflectionSessionKey = "reflection.session_id"
	ReflectionCountKey   = "reflection.count"

	// Cycle attributes
	CycleIDKey       = "cycle.id"
	CycleStageKey    = "cycle.stage"
	CycleDurationKey = "cycle.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// WindowAttributes creates recall window span attributes.
func WindowAttributes(userID, threadID, sessionID string, count int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if userID != "" {
		attrs = append(attrs, attribute.String(ReflectionUserKey, userID))
	}
	if threadID != "" {
		attrs = append(attrs, attribute.String(ReflectionThreadKey, threadID))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(ReflectionSessionKey, sessionID))
	}
	attrs = append(attrs, attribute.Int(ReflectionCountKey, count))
	return attrs
}
