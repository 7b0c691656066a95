package audit

import (
	"context"
	"testing"
)

func TestSlogLogger_Log(t *testing.T) {
	l := NewSlogLogger()

	// Must not panic with or without metadata.
	l.Log(context.Background(), Event{
		Type:     TypeAssignmentAdded,
		TenantID: "north-campus",
		ActorID:  "op-7",
		Resource: "student-42",
	})
	l.Log(context.Background(), Event{
		Type:     TypeStatusChanged,
		TenantID: "north-campus",
		Metadata: map[string]any{"status": "reached_home"},
	})
}

func TestNoopSatisfiesLogger(t *testing.T) {
	var _ Logger = Noop{}
	var _ Logger = (*SlogLogger)(nil)
}
