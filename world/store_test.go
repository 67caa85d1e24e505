package world

import (
	"sort"
	"testing"

	"github.com/google/uuid"
)

func TestUpsertPrimitiveReportsNew(t *testing.T) {
	s := New(true)
	p := &Primitive{Common: Common{LocalID: 1, UUID: uuid.New()}}
	if isNew := s.UpsertPrimitive(p); !isNew {
		t.Error("first upsert should report new")
	}
	if isNew := s.UpsertPrimitive(p); isNew {
		t.Error("second upsert of same local id should not report new")
	}
}

func TestTrackingDisabledAlwaysReportsNew(t *testing.T) {
	s := New(false)
	p := &Primitive{Common: Common{LocalID: 1, UUID: uuid.New()}}
	s.UpsertPrimitive(p)
	if _, ok := s.Primitive(1); ok {
		t.Error("store should be bypassed when tracking is disabled")
	}
	if isNew := s.UpsertPrimitive(p); !isNew {
		t.Error("new should always be true when tracking is disabled")
	}
}

func TestFindByUUID(t *testing.T) {
	s := New(true)
	id := uuid.New()
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 42, UUID: id}})
	localID, isAvatar, ok := s.FindByUUID(id)
	if !ok || isAvatar || localID != 42 {
		t.Errorf("FindByUUID = (%d, %v, %v), want (42, false, true)", localID, isAvatar, ok)
	}
}

// TestKillObjectCascade mirrors the spec scenario: primitives {100, 200, 300}
// with parents {none, 100, 200}; KillObject(100) must remove all three,
// root first.
func TestKillObjectCascade(t *testing.T) {
	s := New(true)
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 100, UUID: uuid.New()}})
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 200, UUID: uuid.New(), ParentLocalID: 100}})
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 300, UUID: uuid.New(), ParentLocalID: 200}})

	removed := s.KillObject(100)
	if removed[0] != 100 {
		t.Errorf("removed[0] = %d, want 100 (root first)", removed[0])
	}
	sorted := append([]uint32(nil), removed...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	want := []uint32{100, 200, 300}
	if len(sorted) != len(want) {
		t.Fatalf("removed = %v, want %v", removed, want)
	}
	for i := range want {
		if sorted[i] != want[i] {
			t.Errorf("removed set = %v, want %v", sorted, want)
		}
	}

	for _, id := range []uint32{100, 200, 300} {
		if _, ok := s.Primitive(id); ok {
			t.Errorf("primitive %d should have been removed", id)
		}
	}
}

func TestKillObjectCascadesSeatedAvatar(t *testing.T) {
	s := New(true)
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 100, UUID: uuid.New()}})
	s.UpsertAvatar(&Avatar{Common: Common{LocalID: 900, UUID: uuid.New()}, SittingOn: 100})

	s.KillObject(100)
	if _, ok := s.Avatar(900); ok {
		t.Error("avatar seated on killed primitive should have been removed")
	}
}

func TestSnapshotIsPointInTime(t *testing.T) {
	s := New(true)
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 1, UUID: uuid.New()}})
	prims, avatars := s.Snapshot()
	if len(prims) != 1 || len(avatars) != 0 {
		t.Fatalf("snapshot = (%d prims, %d avatars), want (1, 0)", len(prims), len(avatars))
	}
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 2, UUID: uuid.New()}})
	if len(prims) != 1 {
		t.Error("earlier snapshot should not observe later writes")
	}
}

func TestStatsReflectsCounts(t *testing.T) {
	s := New(true)
	s.UpsertPrimitive(&Primitive{Common: Common{LocalID: 1, UUID: uuid.New()}})
	s.UpsertAvatar(&Avatar{Common: Common{LocalID: 2, UUID: uuid.New()}})
	st := s.Stats()
	if st.ObjectCount != 1 || st.AvatarCount != 1 {
		t.Errorf("Stats = %+v, want {1 1}", st)
	}
}
