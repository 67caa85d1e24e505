package objectupdate

import (
	"testing"

	"github.com/google/uuid"

	"github.com/cinderblocks/libremetaverse-sub004/protocol"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// TestHandleKillObjectEmitsOnePerCascadedID mirrors the spec scenario:
// primitives {100, 200, 300} with parents {none, 100, 200}; a KillObject
// naming only 100 must cascade through the store and emit one
// EventKillObject per removed id (root first), plus a single aggregate
// EventKillObjects.
func TestHandleKillObjectEmitsOnePerCascadedID(t *testing.T) {
	store := world.New(true)
	store.UpsertPrimitive(&world.Primitive{Common: world.Common{LocalID: 100, UUID: uuid.New()}})
	store.UpsertPrimitive(&world.Primitive{Common: world.Common{LocalID: 200, UUID: uuid.New(), ParentLocalID: 100}})
	store.UpsertPrimitive(&world.Primitive{Common: world.Common{LocalID: 300, UUID: uuid.New(), ParentLocalID: 200}})

	var events []Event
	d := New(store, func(ev Event) { events = append(events, ev) }, Config{})

	w := protocol.NewWriter().U8(1).U32(100)
	d.HandleKillObject(protocol.Packet{Payload: w.Bytes()})

	var killed []uint32
	var aggregates int
	for _, ev := range events {
		switch ev.Kind {
		case EventKillObject:
			if len(ev.KilledIDs) != 1 {
				t.Fatalf("EventKillObject carried %d ids, want 1", len(ev.KilledIDs))
			}
			killed = append(killed, ev.KilledIDs[0])
		case EventKillObjects:
			aggregates++
			if len(ev.KilledIDs) != 3 {
				t.Errorf("EventKillObjects carried %v, want all 3 removed ids", ev.KilledIDs)
			}
		}
	}

	want := []uint32{100, 200, 300}
	if len(killed) != len(want) {
		t.Fatalf("got %d EventKillObject events %v, want %v", len(killed), killed, want)
	}
	for i := range want {
		if killed[i] != want[i] {
			t.Errorf("EventKillObject order = %v, want root-first %v", killed, want)
		}
	}
	if aggregates != 1 {
		t.Errorf("got %d EventKillObjects events, want exactly 1", aggregates)
	}
}

func TestHandleKillObjectSingleRemovalSkipsAggregate(t *testing.T) {
	store := world.New(true)
	store.UpsertPrimitive(&world.Primitive{Common: world.Common{LocalID: 42, UUID: uuid.New()}})

	var events []Event
	d := New(store, func(ev Event) { events = append(events, ev) }, Config{})

	w := protocol.NewWriter().U8(1).U32(42)
	d.HandleKillObject(protocol.Packet{Payload: w.Bytes()})

	for _, ev := range events {
		if ev.Kind == EventKillObjects {
			t.Error("a single removed id should not also emit EventKillObjects")
		}
	}
}
