// Package events publishes passport lifecycle events to a stream. Consumers
// downstream (search indexers, compliance exports) replay the stream; the
// service itself never reads it back.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types, one per lifecycle transition.
const (
	TypeCreated       = "passport.created"
	TypeUpdated       = "passport.updated"
	TypeStatusChanged = "passport.status_changed"
	TypeAnchored      = "passport.anchored"
	TypeAnchorCleared = "passport.anchor_cleared"
)

// Event is one lifecycle fact about a passport.
type Event struct {
	Type           string            `json:"type"`
	PassportID     uuid.UUID         `json:"passportId"`
	OrganisationID uuid.UUID         `json:"organisationId"`
	OccurredAt     time.Time         `json:"occurredAt"`
	Data           map[string]string `json:"data,omitempty"`
}

// Publisher emits lifecycle events. Publishing is best-effort from the
// caller's point of view: a failed publish is logged, never blocks the
// business operation that produced it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
