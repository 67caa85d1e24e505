// Package objectupdate decodes the full, terse, compressed, and cached
// object-update wire variants into world store mutations and a stream
// of typed events.
package objectupdate

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// Config mirrors the recognized object-tracking options. The Decoder
// stores them but does not read them: whether entities are kept is
// decided by the Store's own tracking flag, and every update is decoded
// whatever AlwaysDecodeObjects says.
type Config struct {
	AlwaysDecodeObjects bool
	ObjectTracking      bool
	AvatarTracking      bool
}

// Decoder wires incoming object-update packets to a world.Store and a
// Sink of Events. AgentUUID, when non-zero, identifies the local
// agent's own avatar so its updates also write through to Mirror.
type Decoder struct {
	Store     *world.Store
	Sink      Sink
	AgentUUID uuid.UUID
	Mirror    func(world.Common)
	cfg       Config
}

// New builds a Decoder over store, emitting events to sink.
func New(store *world.Store, sink Sink, cfg Config) *Decoder {
	return &Decoder{Store: store, Sink: sink, cfg: cfg}
}

func (d *Decoder) emit(ev Event) {
	if d.Sink != nil {
		d.Sink(ev)
	}
}

// HandleObjectUpdate parses an ObjectUpdate message body: region handle,
// time dilation, then an array of entity blocks.
func (d *Decoder) HandleObjectUpdate(pkt protocol.Packet) {
	r := protocol.NewReader(pkt.Payload)
	if _, err := r.U64(); err != nil { // region handle
		logging.Warn("objectupdate: short ObjectUpdate header: %v", err)
		return
	}
	if _, err := r.U16(); err != nil { // time dilation
		logging.Warn("objectupdate: short ObjectUpdate header: %v", err)
		return
	}
	count, err := r.U8()
	if err != nil {
		logging.Warn("objectupdate: missing block count: %v", err)
		return
	}

	for i := 0; i < int(count); i++ {
		start := r.Pos()
		prim, avatar, skip, err := decodeFullBlock(r)
		if err != nil {
			logging.Warn("objectupdate: full block %d decode error: %v", i, err)
			return
		}
		if skip {
			continue
		}
		d.emit(Event{Kind: EventObjectDataBlockUpdate, RawBlock: pkt.Payload[start:r.Pos()]})
		d.commitEntity(prim, avatar)
	}
}

func (d *Decoder) commitEntity(prim *world.Primitive, avatar *world.Avatar) {
	switch {
	case avatar != nil:
		prevSitting, hadPrev := uint32(0), false
		if old, ok := d.Store.Avatar(avatar.LocalID); ok {
			prevSitting, hadPrev = old.SittingOn, true
		}
		isNew := !d.Store.TrackingEnabled() || d.Store.UpsertAvatar(avatar)
		d.mirrorIfAgent(avatar.Common)
		d.emit(Event{Kind: EventAvatarUpdate, New: isNew, Avatar: avatar, ObjectUUID: avatar.UUID})
		if !hadPrev && avatar.SittingOn != 0 || hadPrev && prevSitting != avatar.SittingOn {
			d.emit(Event{Kind: EventAvatarSitChanged, Avatar: avatar, ObjectUUID: avatar.UUID, SitTargetID: avatar.SittingOn})
		}
	case prim != nil:
		isNew := !d.Store.TrackingEnabled() || d.Store.UpsertPrimitive(prim)
		d.emit(Event{Kind: EventObjectUpdate, New: isNew, Primitive: prim, ObjectUUID: prim.UUID})
	}
}

func (d *Decoder) mirrorIfAgent(c world.Common) {
	if d.Mirror == nil {
		return
	}
	if c.UUID == d.AgentUUID {
		d.Mirror(c)
	}
}

// HandleTerseObjectUpdate parses an ImprovedTerseObjectUpdate message
// body and applies each block's motion state against already-tracked
// entities (terse updates never introduce a new entity).
func (d *Decoder) HandleTerseObjectUpdate(pkt protocol.Packet) {
	r := protocol.NewReader(pkt.Payload)
	if _, err := r.U64(); err != nil {
		return
	}
	if _, err := r.U16(); err != nil {
		return
	}
	count, err := r.U8()
	if err != nil {
		return
	}
	for i := 0; i < int(count); i++ {
		start := r.Pos()
		tb, err := decodeTerseBlock(r)
		if err != nil {
			logging.Warn("objectupdate: terse block %d decode error: %v", i, err)
			return
		}
		d.emit(Event{Kind: EventObjectDataBlockUpdate, RawBlock: pkt.Payload[start:r.Pos()]})
		d.applyTerse(tb)
	}
}

func (d *Decoder) applyTerse(tb terseBlock) {
	if tb.IsAvatar {
		a, ok := d.Store.Avatar(tb.LocalID)
		if !ok {
			return
		}
		a.Position = tb.Motion.Position
		a.Velocity = tb.Motion.Velocity
		a.Acceleration = tb.Motion.Acceleration
		a.Rotation = tb.Motion.Rotation
		a.AngularVelocity = tb.Motion.AngularVelocity
		a.CollisionPlane = tb.CollisionPlane
		if len(tb.TextureEntry) > 0 {
			a.Textures = world.TextureEntry(tb.TextureEntry)
		}
		d.mirrorIfAgent(a.Common)
		d.emit(Event{Kind: EventTerseObjectUpdate, Avatar: a, ObjectUUID: a.UUID})
		return
	}
	p, ok := d.Store.Primitive(tb.LocalID)
	if !ok {
		return
	}
	p.Position = tb.Motion.Position
	p.Velocity = tb.Motion.Velocity
	p.Acceleration = tb.Motion.Acceleration
	p.Rotation = tb.Motion.Rotation
	p.AngularVelocity = tb.Motion.AngularVelocity
	if len(tb.TextureEntry) > 0 {
		p.Textures = world.TextureEntry(tb.TextureEntry)
	}
	d.emit(Event{Kind: EventTerseObjectUpdate, Primitive: p, ObjectUUID: p.UUID})
}

// HandleObjectUpdateCompressed parses an ObjectUpdateCompressed message
// body: region handle, then a count of length-prefixed per-entity
// byte streams.
func (d *Decoder) HandleObjectUpdateCompressed(pkt protocol.Packet) {
	r := protocol.NewReader(pkt.Payload)
	if _, err := r.U64(); err != nil {
		return
	}
	count, err := r.U8()
	if err != nil {
		return
	}
	for i := 0; i < int(count); i++ {
		lenBytes, err := r.Bytes(4)
		if err != nil {
			logging.Warn("objectupdate: compressed block %d missing length: %v", i, err)
			return
		}
		n := binary.LittleEndian.Uint32(lenBytes)
		blockBytes, err := r.Bytes(int(n))
		if err != nil {
			logging.Warn("objectupdate: compressed block %d truncated: %v", i, err)
			return
		}
		sub := protocol.NewReader(blockBytes)
		res, err := decodeCompressedBlock(sub)
		if err != nil {
			logging.Warn("objectupdate: compressed block %d decode error: %v", i, err)
			continue
		}
		d.emit(Event{Kind: EventObjectDataBlockUpdate, RawBlock: blockBytes})
		if res.IsAvatar {
			a := &world.Avatar{Common: res.Common}
			isNew := !d.Store.TrackingEnabled() || d.Store.UpsertAvatar(a)
			d.mirrorIfAgent(a.Common)
			d.emit(Event{Kind: EventAvatarUpdate, New: isNew, Avatar: a, ObjectUUID: a.UUID})
		} else {
			p := &world.Primitive{Common: res.Common, Shape: res.Shape}
			isNew := !d.Store.TrackingEnabled() || d.Store.UpsertPrimitive(p)
			d.emit(Event{Kind: EventObjectUpdate, New: isNew, Primitive: p, ObjectUUID: p.UUID})
		}
	}
}

// HandleObjectUpdateCached parses an ObjectUpdateCached message body
// and calls requestFull for every (local_id, crc) pair that check
// reports as a miss.
func (d *Decoder) HandleObjectUpdateCached(pkt protocol.Packet, check CacheChecker, requestFull func(localID uint32)) {
	r := protocol.NewReader(pkt.Payload)
	if _, err := r.U64(); err != nil {
		return
	}
	count, err := r.U8()
	if err != nil {
		return
	}
	for i := 0; i < int(count); i++ {
		entry, err := decodeCachedBlock(r)
		if err != nil {
			logging.Warn("objectupdate: cached block %d decode error: %v", i, err)
			return
		}
		if !check(entry.LocalID, entry.CRC) {
			requestFull(entry.LocalID)
		}
	}
}

// HandleKillObject parses a KillObject message body (a count of local
// ids) and cascades each through the store. Every individually removed
// id (the original and anything cascaded off it, root first) gets its
// own KillObject event; KillObjects then carries the full removed set
// for callers that want the aggregate.
func (d *Decoder) HandleKillObject(pkt protocol.Packet) {
	r := protocol.NewReader(pkt.Payload)
	count, err := r.U8()
	if err != nil {
		return
	}
	var allRemoved []uint32
	for i := 0; i < int(count); i++ {
		localID, err := r.U32()
		if err != nil {
			return
		}
		removed := d.Store.KillObject(localID)
		allRemoved = append(allRemoved, removed...)
		for _, id := range removed {
			d.emit(Event{Kind: EventKillObject, KilledIDs: []uint32{id}})
		}
	}
	if len(allRemoved) > 1 {
		d.emit(Event{Kind: EventKillObjects, KilledIDs: allRemoved})
	}
}
