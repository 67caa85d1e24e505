// Package circuit implements a single reliable-UDP circuit to one
// simulator: sequencing, ACK bookkeeping, resend, and liveness.
package circuit

import (
	"net"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/cinderblocks/libremetaverse-sub004/pipeline"
	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

// State is a circuit's position in its connection lifecycle.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateHandshaking
	StateConnected
	StateDisconnectCandidate
	StateDisconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDisconnectCandidate:
		return "disconnect_candidate"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ShutdownReason records why a circuit was torn down.
type ShutdownReason int

const (
	ShutdownClientInitiated ShutdownReason = iota
	ShutdownServerInitiated
	ShutdownNetworkTimeout
	ShutdownSimShutdown
)

func (r ShutdownReason) String() string {
	switch r {
	case ShutdownClientInitiated:
		return "client_initiated"
	case ShutdownServerInitiated:
		return "server_initiated"
	case ShutdownNetworkTimeout:
		return "network_timeout"
	case ShutdownSimShutdown:
		return "sim_shutdown"
	default:
		return "unknown"
	}
}

// unacked is an outbound reliable packet awaiting acknowledgment.
type unacked struct {
	buffer      []byte
	sendTime    time.Time
	resendCount int
	messageKind string
}

// Stats mirrors the simulator's periodically-reported circuit health.
type Stats struct {
	Dilation    float32
	FPS         float32
	ObjectCount int
}

// Sender writes a raw datagram to the circuit's remote address.
// *net.UDPConn satisfies this directly through its WriteTo method.
type Sender interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Config tunes the resend sweep and liveness timers. Zero values fall
// back to the defaults used against a live grid.
type Config struct {
	AckTimeout        time.Duration
	MaxResends        int
	ResendSweep       time.Duration
	PingInterval      time.Duration
	DisconnectTimeout time.Duration
	MaxAppendedAcks   int
}

func (c Config) withDefaults() Config {
	if c.AckTimeout == 0 {
		c.AckTimeout = 500 * time.Millisecond
	}
	if c.MaxResends == 0 {
		c.MaxResends = 3
	}
	if c.ResendSweep == 0 {
		c.ResendSweep = 100 * time.Millisecond
	}
	if c.PingInterval == 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.DisconnectTimeout == 0 {
		c.DisconnectTimeout = 60 * time.Second
	}
	if c.MaxAppendedAcks == 0 {
		c.MaxAppendedAcks = 32
	}
	return c
}

// OnAbandoned is invoked when a reliable packet exhausts its resend budget.
type OnAbandoned func(messageKind string, sequence uint32)

// OnInbound is invoked once per dispatchable inbound packet. Duplicates
// are handled internally and never reach this hook; PacketAck messages
// are not special-cased and reach it like any other packet.
type OnInbound func(pkt protocol.Packet)

// Circuit is one reliable-UDP connection to a simulator.
type Circuit struct {
	ID          string
	Remote      *net.UDPAddr
	CircuitCode uint32
	SeedCapURL  string

	conn   Sender
	cfg    Config
	onAbnd OnAbandoned
	onIn   OnInbound
	outbox *pipeline.Pipeline

	mu               sync.RWMutex
	state            State
	outboundSeq      uint32
	unacked          map[uint32]*unacked
	recentReceive    map[uint32]time.Time
	pendingAcks      []uint32
	lastPingTime     time.Time
	lastPingID       uint32
	latency          time.Duration
	handshakeDone    bool
	disconnectCand   bool
	missedLiveness   int
	stats            Stats

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// SetOutbox routes this circuit's outbound datagrams (sends, resends,
// and pings alike) through p's backpressure-limited outbox instead of
// writing straight to conn. Callers must set this, if at all, before
// Start; it is not safe to change once the circuit is running.
func (c *Circuit) SetOutbox(p *pipeline.Pipeline) {
	c.outbox = p
}

// writeDatagram delivers an already-encoded datagram to the remote
// address, through the outbox's queued, rate-limited drain if one is
// set, or directly otherwise. A queued write is fire-and-forget, per
// send_reliable's non-blocking contract; its error is logged by the
// outbox's drain loop, not returned here.
func (c *Circuit) writeDatagram(data []byte) error {
	if c.outbox != nil {
		c.outbox.Send(pipeline.OutboundItem{Write: func() error {
			_, err := c.conn.WriteTo(data, c.Remote)
			return err
		}})
		return nil
	}
	_, err := c.conn.WriteTo(data, c.Remote)
	return err
}

// New constructs a Circuit bound to remote over conn. conn.WriteTo is
// called with remote on every send.
func New(conn Sender, remote *net.UDPAddr, circuitCode uint32, cfg Config, onAbnd OnAbandoned, onIn OnInbound) *Circuit {
	return &Circuit{
		ID:            xid.New().String(),
		Remote:        remote,
		CircuitCode:   circuitCode,
		conn:          conn,
		cfg:           cfg.withDefaults(),
		onAbnd:        onAbnd,
		onIn:          onIn,
		state:         StateNew,
		outboundSeq:   1,
		unacked:       make(map[uint32]*unacked),
		recentReceive: make(map[uint32]time.Time),
		stopCh:        make(chan struct{}),
	}
}

// State returns the circuit's current lifecycle state.
func (c *Circuit) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Circuit) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Latency returns the last sampled round-trip ping time.
func (c *Circuit) Latency() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latency
}

// Stats returns the last-known simulator-reported circuit stats.
func (c *Circuit) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// SetStats updates the simulator-reported stats (dilation, fps, object
// count), typically from a SimStats message handler.
func (c *Circuit) SetStats(s Stats) {
	c.mu.Lock()
	c.stats = s
	c.mu.Unlock()
}

// HandshakeComplete reports whether the circuit's handshake-complete flag
// is set. Only setHandshakeComplete sets it, and nothing in this module
// calls that or sends a RegionHandshakeReply, so it reports false.
func (c *Circuit) HandshakeComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handshakeDone
}

func (c *Circuit) setHandshakeComplete() {
	c.mu.Lock()
	c.handshakeDone = true
	c.mu.Unlock()
}

// Start transitions the circuit to Connecting and launches its
// background sweeps (resend, ping, disconnect-candidate).
func (c *Circuit) Start() {
	c.setState(StateConnecting)
	c.wg.Add(2)
	go c.resendLoop()
	go c.pingLoop()
	logging.With(logging.Fields{"circuit": c.ID, "remote": c.Remote.String()}).Info("circuit started")
}

// Shutdown stops background sweeps and marks the circuit closed. It
// sends nothing to the simulator itself (no LogoutRequest or
// DisableSimulator).
func (c *Circuit) Shutdown(reason ShutdownReason) {
	c.setState(StateDisconnecting)
	close(c.stopCh)
	c.wg.Wait()
	c.setState(StateClosed)
	logging.With(logging.Fields{"circuit": c.ID, "reason": reason.String()}).Info("circuit shut down")
}

// Send transmits pkt unreliably (no un-acked tracking), zerocoding and
// appending pending acks as the header flags dictate.
func (c *Circuit) Send(pkt protocol.Packet) error {
	_, err := c.send(pkt, false, "")
	return err
}

// SendReliable transmits pkt with the RELIABLE flag set and records it
// in the un-acked table under a freshly allocated sequence id.
func (c *Circuit) SendReliable(pkt protocol.Packet, messageKind string) (uint32, error) {
	return c.send(pkt, true, messageKind)
}

func (c *Circuit) send(pkt protocol.Packet, reliable bool, messageKind string) (uint32, error) {
	c.mu.Lock()
	seq := c.outboundSeq
	c.outboundSeq++

	hdr := pkt.Header
	hdr.Sequence = seq
	if reliable {
		hdr.Flags |= protocol.FlagReliable
	}
	if protocol.ShouldZerocode(pkt.Payload) {
		hdr.Flags |= protocol.FlagZerocoded
	}

	var acks []uint32
	if len(c.pendingAcks) > 0 {
		n := len(c.pendingAcks)
		if n > c.cfg.MaxAppendedAcks {
			n = c.cfg.MaxAppendedAcks
		}
		acks = append(acks, c.pendingAcks[:n]...)
		c.pendingAcks = c.pendingAcks[n:]
		hdr.Flags |= protocol.FlagAppendedAcks
	}
	pkt.Header = hdr

	data := protocol.Encode(pkt, acks)

	if reliable {
		c.unacked[seq] = &unacked{buffer: data, sendTime: time.Now(), messageKind: messageKind}
	}
	c.mu.Unlock()

	err := c.writeDatagram(data)
	return seq, err
}

// OnDatagram processes one raw inbound UDP datagram: it strips and
// applies appended acks first (even if the rest of the packet fails to
// parse), then suppresses duplicates, queues an ack for reliable
// packets, and dispatches everything else to onIn.
func (c *Circuit) OnDatagram(data []byte) error {
	hdr, acks, rest, err := protocol.ParseDatagram(data)
	c.applyAcks(acks)
	c.clearDisconnectCandidate()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if _, dup := c.recentReceive[hdr.Sequence]; dup {
		if hdr.Flags.Has(protocol.FlagResent) {
			c.pendingAcks = append(c.pendingAcks, hdr.Sequence)
		}
		c.mu.Unlock()
		return nil
	}
	c.recentReceive[hdr.Sequence] = time.Now()
	if hdr.Flags.Has(protocol.FlagReliable) {
		c.pendingAcks = append(c.pendingAcks, hdr.Sequence)
	}
	c.mu.Unlock()

	id, consumed, err := protocol.DecodeMessageID(rest)
	if err != nil {
		return err
	}
	payload := rest[consumed:]
	if hdr.Flags.Has(protocol.FlagZerocoded) {
		payload, err = protocol.ZeroDecode(payload)
		if err != nil {
			return err
		}
	}

	if c.onIn != nil {
		c.onIn(protocol.Packet{Header: hdr, ID: id, Payload: payload})
	}
	return nil
}

func (c *Circuit) applyAcks(acks []uint32) {
	if len(acks) == 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	for _, seq := range acks {
		if u, ok := c.unacked[seq]; ok {
			c.latency = now.Sub(u.sendTime)
			delete(c.unacked, seq)
		}
	}
	c.mu.Unlock()
}

func (c *Circuit) clearDisconnectCandidate() {
	c.mu.Lock()
	c.disconnectCand = false
	c.missedLiveness = 0
	c.mu.Unlock()
}

// DisconnectCandidate reports whether two consecutive liveness ticks
// have counted as missed since the last inbound datagram. The circuit
// does not shut itself down when this becomes true; the session's
// disconnect sweep does.
func (c *Circuit) DisconnectCandidate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disconnectCand
}
