package registry

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names the registry's emitted events.
type EventType string

const (
	EventRegistered    EventType = "PassportRegistered"
	EventStatusChanged EventType = "PassportStatusChanged"
	EventHashUpdated   EventType = "PassportHashUpdated"
	EventTransferred   EventType = "PassportTransferred"
)

// Event carries the before/after values relevant to its type plus the ledger
// timestamp at emission.
type Event struct {
	Type      EventType
	ID        [32]byte
	OldHash   [32]byte
	NewHash   [32]byte
	OldOwner  common.Address
	NewOwner  common.Address
	OldStatus Status
	NewStatus Status
	URI       string
	Timestamp time.Time
}
