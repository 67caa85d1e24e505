package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

func TestSyncHandlerDispatchedOnInboxGoroutine(t *testing.T) {
	p := New(Config{})
	p.Start()
	defer p.Stop()

	done := make(chan struct{})
	p.Register(protocol.MsgStartPing, false, func(pkt protocol.Packet) {
		close(done)
	})

	p.Enqueue(protocol.Packet{ID: protocol.MsgStartPing})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}
}

func TestAsyncHandlerPromotesAllHandlersForID(t *testing.T) {
	p := New(Config{})
	p.Start()
	defer p.Stop()

	var calls int32
	var wg sync.WaitGroup
	wg.Add(2)
	p.Register(protocol.MsgStartPing, false, func(pkt protocol.Packet) {
		atomic.AddInt32(&calls, 1)
		wg.Done()
	})
	p.Register(protocol.MsgStartPing, true, func(pkt protocol.Packet) {
		atomic.AddInt32(&calls, 1)
		wg.Done()
	})

	p.Enqueue(protocol.Packet{ID: protocol.MsgStartPing})

	waitOrTimeout(t, &wg, time.Second)
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestBlacklistDropsInbound(t *testing.T) {
	p := New(Config{})
	p.Start()
	defer p.Stop()

	p.Blacklist([]protocol.MessageID{protocol.MsgKickUser})

	var called int32
	p.Register(protocol.MsgKickUser, false, func(pkt protocol.Packet) {
		atomic.AddInt32(&called, 1)
	})
	p.Enqueue(protocol.Packet{ID: protocol.MsgKickUser})

	// Give the inbox drainer a tick to process (or not process) the packet.
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&called) != 0 {
		t.Error("blacklisted message id should not have dispatched")
	}
}

func TestOutboxEnforcesMinimumInterval(t *testing.T) {
	p := New(Config{MinOutboundInterval: 20 * time.Millisecond})
	p.Start()
	defer p.Stop()

	var times []time.Time
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		p.Send(OutboundItem{Write: func() error {
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
			wg.Done()
			return nil
		}})
	}
	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(times) != 3 {
		t.Fatalf("got %d writes, want 3", len(times))
	}
	if times[1].Sub(times[0]) < 15*time.Millisecond {
		t.Errorf("writes 0,1 too close together: %v", times[1].Sub(times[0]))
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for handlers")
	}
}
