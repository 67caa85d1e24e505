package circuit

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeSender) WriteTo(b []byte, addr net.Addr) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.sent = append(f.sent, cp)
	return len(b), nil
}

func (f *fakeSender) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func newTestCircuit() (*Circuit, *fakeSender) {
	fs := &fakeSender{}
	remote := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 13000}
	c := New(fs, remote, 12345, Config{}, nil, nil)
	return c, fs
}

func TestSendAllocatesMonotonicSequences(t *testing.T) {
	c, _ := newTestCircuit()
	pkt := protocol.Packet{ID: protocol.MsgCompletePing, Payload: []byte{0x01}}

	seq1, err := c.SendReliable(pkt, "CompletePing")
	if err != nil {
		t.Fatalf("SendReliable error: %v", err)
	}
	seq2, err := c.SendReliable(pkt, "CompletePing")
	if err != nil {
		t.Fatalf("SendReliable error: %v", err)
	}
	if seq2 != seq1+1 {
		t.Errorf("sequence 2 = %d, want %d", seq2, seq1+1)
	}
}

func TestSendReliableTracksUnacked(t *testing.T) {
	c, _ := newTestCircuit()
	pkt := protocol.Packet{ID: protocol.MsgCompletePing, Payload: []byte{0x01}}

	seq, err := c.SendReliable(pkt, "CompletePing")
	if err != nil {
		t.Fatalf("SendReliable error: %v", err)
	}
	c.mu.RLock()
	_, tracked := c.unacked[seq]
	c.mu.RUnlock()
	if !tracked {
		t.Fatal("expected sequence to be tracked in un-acked table")
	}
}

func TestOnDatagramAppliesAppendedAcks(t *testing.T) {
	c, fs := newTestCircuit()
	pkt := protocol.Packet{ID: protocol.MsgCompletePing, Payload: []byte{0x01}}
	seq, _ := c.SendReliable(pkt, "CompletePing")

	// Simulate the simulator acking our sequence in its next datagram.
	hdr := protocol.Header{Flags: protocol.FlagAppendedAcks, Sequence: 1}
	idw := protocol.NewWriter()
	protocol.MsgStartPing.Encode(idw)
	body := append(idw.Bytes(), 0x00)
	data := protocol.SerializeDatagram(hdr, body, []uint32{seq})

	if err := c.OnDatagram(data); err != nil {
		t.Fatalf("OnDatagram error: %v", err)
	}

	c.mu.RLock()
	_, stillTracked := c.unacked[seq]
	c.mu.RUnlock()
	if stillTracked {
		t.Error("sequence should have been removed from un-acked table after ack")
	}
	_ = fs
}

func TestOnDatagramDuplicateSuppression(t *testing.T) {
	c, _ := newTestCircuit()
	var dispatched int
	c.onIn = func(pkt protocol.Packet) { dispatched++ }

	hdr := protocol.Header{Flags: protocol.FlagReliable, Sequence: 7}
	idw := protocol.NewWriter()
	protocol.MsgStartPing.Encode(idw)
	body := append(idw.Bytes(), 0x00)
	data := protocol.SerializeDatagram(hdr, body, nil)

	if err := c.OnDatagram(data); err != nil {
		t.Fatalf("first OnDatagram error: %v", err)
	}
	if err := c.OnDatagram(data); err != nil {
		t.Fatalf("second OnDatagram error: %v", err)
	}
	if dispatched != 1 {
		t.Errorf("dispatched %d times, want 1 (duplicate should be suppressed)", dispatched)
	}

	c.mu.RLock()
	acksQueued := len(c.pendingAcks)
	c.mu.RUnlock()
	if acksQueued != 1 {
		t.Errorf("pending acks = %d, want 1", acksQueued)
	}
}

func TestStartAndShutdown(t *testing.T) {
	c, _ := newTestCircuit()
	c.cfg.ResendSweep = 5 * time.Millisecond
	c.cfg.PingInterval = 5 * time.Millisecond
	c.Start()
	if c.State() != StateConnecting {
		t.Errorf("state = %v, want Connecting", c.State())
	}
	time.Sleep(20 * time.Millisecond)
	c.Shutdown(ShutdownClientInitiated)
	if c.State() != StateClosed {
		t.Errorf("state = %v, want Closed", c.State())
	}
}

func TestSweepResendsAbandonsAfterMaxResends(t *testing.T) {
	c, fs := newTestCircuit()
	c.cfg.AckTimeout = 0
	c.cfg.MaxResends = 2
	var abandoned uint32
	c.onAbnd = func(kind string, seq uint32) { abandoned = seq }

	pkt := protocol.Packet{ID: protocol.MsgCompletePing, Payload: []byte{0x01}}
	seq, _ := c.SendReliable(pkt, "CompletePing")

	c.sweepResends()
	c.sweepResends()
	c.sweepResends()

	if abandoned != seq {
		t.Errorf("abandoned seq = %d, want %d", abandoned, seq)
	}
	if len(fs.sent) < 3 {
		t.Errorf("expected at least 3 sends (original + 2 resends), got %d", len(fs.sent))
	}
}
