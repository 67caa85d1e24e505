package world

import (
	"sync"

	"github.com/google/uuid"
)

// Stats summarizes a store's contents for metrics/UI consumers.
type Stats struct {
	ObjectCount int
	AvatarCount int
}

// Store holds one simulator's primitive and avatar maps. Writes are
// serialized by mu; reads either take a short RLock or call Snapshot
// for a point-in-time copy that the caller can range over lock-free.
type Store struct {
	mu sync.RWMutex

	prims       map[uint32]*Primitive
	avatars     map[uint32]*Avatar
	primByUUID  map[uuid.UUID]uint32
	avatarByUUID map[uuid.UUID]uint32

	trackingEnabled bool
}

// New builds an empty Store. trackingEnabled mirrors the
// object_tracking/avatar_tracking config: when false, writes are
// bypassed and the store stays empty (callers still get events).
func New(trackingEnabled bool) *Store {
	return &Store{
		prims:        make(map[uint32]*Primitive),
		avatars:      make(map[uint32]*Avatar),
		primByUUID:   make(map[uuid.UUID]uint32),
		avatarByUUID: make(map[uuid.UUID]uint32),
		trackingEnabled: trackingEnabled,
	}
}

// TrackingEnabled reports whether this store retains entities.
func (s *Store) TrackingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackingEnabled
}

// UpsertPrimitive inserts or replaces a primitive, returning whether it
// was newly created. A no-op (returns true, new) if tracking is disabled.
func (s *Store) UpsertPrimitive(p *Primitive) (isNew bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.trackingEnabled {
		return true
	}
	_, existed := s.prims[p.LocalID]
	s.prims[p.LocalID] = p
	s.primByUUID[p.UUID] = p.LocalID
	return !existed
}

// UpsertAvatar inserts or replaces an avatar, returning whether it was
// newly created.
func (s *Store) UpsertAvatar(a *Avatar) (isNew bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.trackingEnabled {
		return true
	}
	_, existed := s.avatars[a.LocalID]
	s.avatars[a.LocalID] = a
	s.avatarByUUID[a.UUID] = a.LocalID
	return !existed
}

// Primitive returns the primitive for localID, if present.
func (s *Store) Primitive(localID uint32) (*Primitive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prims[localID]
	return p, ok
}

// Avatar returns the avatar for localID, if present.
func (s *Store) Avatar(localID uint32) (*Avatar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.avatars[localID]
	return a, ok
}

// FindByUUID resolves either map's local id for uuid u.
func (s *Store) FindByUUID(u uuid.UUID) (localID uint32, isAvatar bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, found := s.avatarByUUID[u]; found {
		return id, true, true
	}
	if id, found := s.primByUUID[u]; found {
		return id, false, true
	}
	return 0, false, false
}

// Snapshot returns point-in-time slices of both maps' values, safe to
// range over without holding any lock. The slices are fresh; the
// entities they point to are shared with the store, not copied.
func (s *Store) Snapshot() (prims []*Primitive, avatars []*Avatar) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prims = make([]*Primitive, 0, len(s.prims))
	for _, p := range s.prims {
		prims = append(prims, p)
	}
	avatars = make([]*Avatar, 0, len(s.avatars))
	for _, a := range s.avatars {
		avatars = append(avatars, a)
	}
	return prims, avatars
}

// Stats reports the current entity counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{ObjectCount: len(s.prims), AvatarCount: len(s.avatars)}
}

// KillObject removes localID (a primitive or an avatar) and cascades to
// every primitive whose parent chain includes it, at any depth, and to
// avatars seated on any removed primitive. It returns every local id
// removed, root first.
func (s *Store) KillObject(localID uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := []uint32{localID}
	delete(s.prims, localID)
	s.removeUUIDFor(localID)
	if a, ok := s.avatars[localID]; ok {
		delete(s.avatars, localID)
		delete(s.avatarByUUID, a.UUID)
	}

	frontier := []uint32{localID}
	for len(frontier) > 0 {
		var next []uint32
		for id := range s.prims {
			p := s.prims[id]
			for _, parent := range frontier {
				if p.ParentLocalID == parent {
					removed = append(removed, id)
					next = append(next, id)
					break
				}
			}
		}
		for _, id := range next {
			delete(s.prims, id)
			s.removeUUIDFor(id)
		}
		frontier = next
	}

	// Avatars seated on any removed prim, at whatever depth of the
	// cascade it was removed, are also removed.
	killedSet := make(map[uint32]bool, len(removed))
	for _, id := range removed {
		killedSet[id] = true
	}
	for id, a := range s.avatars {
		if killedSet[a.SittingOn] {
			removed = append(removed, id)
			delete(s.avatars, id)
			delete(s.avatarByUUID, a.UUID)
		}
	}

	return removed
}

func (s *Store) removeUUIDFor(localID uint32) {
	for u, id := range s.primByUUID {
		if id == localID {
			delete(s.primByUUID, u)
			return
		}
	}
}
