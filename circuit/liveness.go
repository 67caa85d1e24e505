package circuit

import (
	"time"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

// resendLoop walks the un-acked table on cfg.ResendSweep, resending any
// entry older than cfg.AckTimeout and abandoning those past MaxResends.
func (c *Circuit) resendLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.ResendSweep)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweepResends()
		}
	}
}

func (c *Circuit) sweepResends() {
	now := time.Now()
	var toResend []uint32
	var abandoned []uint32
	var abandonedKinds []string

	c.mu.Lock()
	for seq, u := range c.unacked {
		if now.Sub(u.sendTime) < c.cfg.AckTimeout {
			continue
		}
		if u.resendCount >= c.cfg.MaxResends {
			abandoned = append(abandoned, seq)
			abandonedKinds = append(abandonedKinds, u.messageKind)
			delete(c.unacked, seq)
			continue
		}
		u.resendCount++
		u.sendTime = now
		toResend = append(toResend, seq)
	}
	pending := make([]*unacked, len(toResend))
	for i, seq := range toResend {
		pending[i] = c.unacked[seq]
	}
	c.mu.Unlock()

	for i, u := range pending {
		setResentFlag(u.buffer)
		if err := c.writeDatagram(u.buffer); err != nil {
			logging.Warn("circuit %s: resend of seq %d failed: %v", c.ID, toResend[i], err)
		}
	}
	for i, seq := range abandoned {
		logging.Warn("circuit %s: abandoning sequence %d after %d resends", c.ID, seq, c.cfg.MaxResends)
		if c.onAbnd != nil {
			c.onAbnd(abandonedKinds[i], seq)
		}
	}
}

// setResentFlag flips the RESENT bit in an already-serialized datagram's
// header byte in place.
func setResentFlag(buf []byte) {
	if len(buf) == 0 {
		return
	}
	buf[0] |= byte(protocol.FlagResent)
}

// pingLoop sends a StartPing every cfg.PingInterval and drives the
// liveness count in tickLiveness: the second consecutive missed tick
// marks the circuit a disconnect candidate, and any inbound datagram
// clears the count. The circuit neither shuts itself down nor calls
// onAbnd for this; the session's disconnect sweep shuts down circuits
// whose DisconnectCandidate reports true.
func (c *Circuit) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tickLiveness()
		}
	}
}

func (c *Circuit) tickLiveness() {
	c.mu.Lock()
	sinceLast := time.Since(c.lastPingTime)
	c.lastPingTime = time.Now()
	id := c.lastPingID
	c.lastPingID++

	if sinceLast >= c.cfg.DisconnectTimeout {
		c.missedLiveness++
		if c.missedLiveness >= 2 {
			c.state = StateDisconnectCandidate
		}
		c.disconnectCand = c.missedLiveness >= 2
	}
	c.mu.Unlock()

	w := protocol.NewWriter().U8(uint8(id))
	pkt := protocol.Packet{
		Header:  protocol.Header{},
		ID:      protocol.MsgStartPing,
		Payload: w.Bytes(),
	}
	if _, err := c.send(pkt, false, ""); err != nil {
		logging.Warn("circuit %s: ping send failed: %v", c.ID, err)
	}
}

// CompletePing records a round-trip sample from an inbound CompletePing
// reply. Callers route the decoded ping id from the pipeline here.
func (c *Circuit) CompletePing(pingID uint8) {
	c.mu.Lock()
	c.latency = time.Since(c.lastPingTime)
	c.mu.Unlock()
}
