// Package id generates the ephemeral identifiers the orchestrator and
// queue hand out — job ids, call ids — using google/uuid the way every
// service in the wider pack does for non-deterministic identifiers.
package id

import "github.com/google/uuid"

func New() string {
	return uuid.NewString()
}
