// Package state defines the per-user conversation state contract used by
// dialogue-driven bots: one record per user holding a state tag and an opaque
// payload. Absence of a record means the user is idle.
package state
