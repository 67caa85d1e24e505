package objectupdate

import (
	"github.com/google/uuid"

	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// EventKind tags which object-update event a Dispatcher emitted.
type EventKind int

const (
	EventObjectUpdate EventKind = iota
	EventAvatarUpdate
	EventTerseObjectUpdate
	EventObjectDataBlockUpdate
	EventKillObject
	EventKillObjects
	EventAvatarSitChanged
)

// Event is the single event type emitted for every object-update
// variant; Kind selects which fields are populated.
type Event struct {
	Kind        EventKind
	New         bool
	Primitive   *world.Primitive
	Avatar      *world.Avatar
	KilledIDs   []uint32
	RawBlock    []byte
	ObjectUUID  uuid.UUID
	SitTargetID uint32
}

// Sink receives decoded object-update events.
type Sink func(Event)
