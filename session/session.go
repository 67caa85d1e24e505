// Package session manages the fleet of circuits that make up a
// connection to a grid: which simulator is current, connect/disconnect,
// and the shutdown/logout lifecycle.
package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cinderblocks/libremetaverse-sub004/circuit"
	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/pipeline"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
	"github.com/cinderblocks/libremetaverse-sub004/throttle"
)

// ShutdownReason is circuit.ShutdownReason's vocabulary, reused as-is;
// SimShutdown fires when the last circuit in the fleet goes away.
type ShutdownReason = circuit.ShutdownReason

const (
	ShutdownClientInitiated = circuit.ShutdownClientInitiated
	ShutdownServerInitiated = circuit.ShutdownServerInitiated
	ShutdownNetworkTimeout  = circuit.ShutdownNetworkTimeout
	ShutdownSimShutdown     = circuit.ShutdownSimShutdown
)

// Config tunes timeouts the session enforces across its fleet.
type Config struct {
	CircuitConfig      circuit.Config
	PipelineConfig     pipeline.Config
	DisconnectSweep    time.Duration
	LogoutTimeout      time.Duration
	HandshakeTimeout   time.Duration
	SendAgentThrottle  bool
	DefaultThrottle    throttle.Rates
}

func (c Config) withDefaults() Config {
	if c.DisconnectSweep == 0 {
		c.DisconnectSweep = time.Second
	}
	if c.LogoutTimeout == 0 {
		c.LogoutTimeout = 5 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

// Session owns a fleet of circuits and tracks which one is current.
type Session struct {
	cfg  Config
	conn circuit.Sender

	mu       sync.RWMutex
	fleet    []*circuit.Circuit
	current  *circuit.Circuit
	pipeline *pipeline.Pipeline

	handshakeWaiters map[*circuit.Circuit]chan struct{}
	logoutWaiters    map[*circuit.Circuit]chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Session. conn is the shared UDP socket circuits write
// through.
func New(conn circuit.Sender, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg:              cfg,
		conn:             conn,
		pipeline:         pipeline.New(cfg.PipelineConfig),
		handshakeWaiters: make(map[*circuit.Circuit]chan struct{}),
		logoutWaiters:    make(map[*circuit.Circuit]chan struct{}),
		stopCh:           make(chan struct{}),
	}
}

// Pipeline exposes the shared inbound/outbound pipeline for handler
// registration by higher-level subsystems (object-update decoder, etc).
func (s *Session) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Connect brings up a new circuit to remote. If setCurrent is true (or
// this is the first circuit) the session promotes it as current through
// SetCurrent. Connect blocks until a RegionHandshake arrives, ctx is
// done, or HandshakeTimeout elapses; it sends no RegionHandshakeReply.
func (s *Session) Connect(ctx context.Context, remote *net.UDPAddr, circuitCode uint32, seedCap string, setCurrent bool) (*circuit.Circuit, error) {
	s.mu.Lock()
	first := len(s.fleet) == 0
	c := circuit.New(s.conn, remote, circuitCode, s.cfg.CircuitConfig, s.onAbandoned, s.onInbound)
	c.SeedCapURL = seedCap
	c.SetOutbox(s.pipeline)
	s.fleet = append(s.fleet, c)
	waiter := make(chan struct{})
	s.handshakeWaiters[c] = waiter
	s.mu.Unlock()

	if first {
		s.pipeline.Start()
		s.startDisconnectSweep()
	}
	c.Start()

	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	select {
	case <-waiter:
	case <-hctx.Done():
		return nil, fmt.Errorf("session: connect to %s: %w", remote, hctx.Err())
	}

	if setCurrent || first {
		s.SetCurrent(c)
	}
	return c, nil
}

// SetCurrent promotes c to the session's current simulator, pushes the
// default throttle when SendAgentThrottle is set, and always sends
// CompleteAgentMovement.
func (s *Session) SetCurrent(c *circuit.Circuit) {
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()

	if s.cfg.SendAgentThrottle {
		w := protocol.NewWriter().Raw(throttle.Encode(s.cfg.DefaultThrottle))
		_ = c.Send(protocol.Packet{ID: protocol.MsgAgentThrottle, Payload: w.Bytes()})
	}
	_ = c.Send(protocol.Packet{ID: protocol.MsgCompleteAgentMovement})
}

// Current returns the session's current circuit, or nil if none.
func (s *Session) Current() *circuit.Circuit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// FindByAddr returns the fleet circuit bound to addr, if any.
func (s *Session) FindByAddr(addr *net.UDPAddr) (*circuit.Circuit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.fleet {
		if c.Remote.String() == addr.String() {
			return c, true
		}
	}
	return nil, false
}

// Disconnect tears down one circuit. If the removed circuit was
// current, current becomes nil; if it was the last circuit in the
// fleet, the whole session shuts down with SimShutdown.
func (s *Session) Disconnect(c *circuit.Circuit, reason circuit.ShutdownReason) {
	c.Shutdown(reason)

	s.mu.Lock()
	for i, fc := range s.fleet {
		if fc == c {
			s.fleet = append(s.fleet[:i], s.fleet[i+1:]...)
			break
		}
	}
	wasCurrent := s.current == c
	if wasCurrent {
		s.current = nil
	}
	empty := len(s.fleet) == 0
	s.mu.Unlock()

	if empty {
		s.Shutdown(ShutdownSimShutdown)
	}
}

// Shutdown tears down every circuit in the fleet and stops the shared
// pipeline and disconnect sweep.
func (s *Session) Shutdown(reason ShutdownReason) {
	s.mu.Lock()
	fleet := append([]*circuit.Circuit(nil), s.fleet...)
	s.fleet = nil
	s.current = nil
	s.mu.Unlock()

	for _, c := range fleet {
		c.Shutdown(reason)
	}
	close(s.stopCh)
	s.wg.Wait()
	s.pipeline.Stop()
	logging.With(logging.Fields{"reason": fmt.Sprint(reason)}).Info("session shut down")
}

// Logout sends LogoutRequest on the current circuit and waits for
// LogoutReply or the logout timeout, after which it forces a
// NetworkTimeout shutdown.
func (s *Session) Logout(ctx context.Context) error {
	cur := s.Current()
	if cur == nil {
		return fmt.Errorf("session: logout: no current circuit")
	}

	waiter := make(chan struct{})
	s.mu.Lock()
	s.logoutWaiters[cur] = waiter
	s.mu.Unlock()

	if _, err := cur.SendReliable(protocol.Packet{ID: protocol.MsgLogoutRequest}, "LogoutRequest"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LogoutTimeout)
	defer cancel()

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		s.Shutdown(ShutdownNetworkTimeout)
		return fmt.Errorf("session: logout: timed out waiting for reply")
	}
}

func (s *Session) onAbandoned(messageKind string, sequence uint32) {
	logging.Warn("session: reliable message %q (seq %d) abandoned after exhausting resends", messageKind, sequence)
}

func (s *Session) onInbound(pkt protocol.Packet) {
	switch pkt.ID {
	case protocol.MsgRegionHandshake:
		s.signalHandshake(pkt)
	case protocol.MsgLogoutReply:
		s.signalLogout(pkt)
	}
	s.pipeline.Enqueue(pkt)
}

func (s *Session) signalHandshake(pkt protocol.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, waiter := range s.handshakeWaiters {
		select {
		case <-waiter:
		default:
			close(waiter)
		}
		delete(s.handshakeWaiters, c)
		break
	}
}

func (s *Session) signalLogout(pkt protocol.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, waiter := range s.logoutWaiters {
		select {
		case <-waiter:
		default:
			close(waiter)
		}
		delete(s.logoutWaiters, c)
		break
	}
}

func (s *Session) startDisconnectSweep() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.DisconnectSweep)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.sweepDisconnectCandidates()
			}
		}
	}()
}

func (s *Session) sweepDisconnectCandidates() {
	s.mu.RLock()
	fleet := append([]*circuit.Circuit(nil), s.fleet...)
	s.mu.RUnlock()

	for _, c := range fleet {
		if c.DisconnectCandidate() {
			logging.Warn("session: circuit %s is a disconnect candidate, tearing down", c.ID)
			s.Disconnect(c, circuit.ShutdownNetworkTimeout)
		}
	}
}
