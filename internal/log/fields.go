// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID    = "request_id"
	FieldCycleID      = "cycle_id"
	FieldReflectionID = "reflection_id"
	FieldUserID       = "user_id"
	FieldThreadID     = "thread_id"
	FieldSessionID    = "session_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Verification fields
	FieldSeal       = "seal"
	FieldDriftScore = "drift_score"
	FieldChecksum   = "checksum"
)
