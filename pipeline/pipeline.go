// Package pipeline drains inbound and outbound packet queues and
// dispatches inbound packets to message-id handlers, promoting a whole
// id's handler set to asynchronous dispatch the moment any one handler
// for that id asks for it.
package pipeline

import (
	"sync"
	"time"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

// Handler processes one inbound packet.
type Handler func(pkt protocol.Packet)

// OutboundItem is a queued send: a thunk that writes one datagram. The
// outbox drainer runs the thunks in order, spaced by the minimum
// outbound interval.
type OutboundItem struct {
	Write func() error
}

type handlerEntry struct {
	fn    Handler
	async bool
}

// Pipeline owns the inbox/outbox drain loops and the handler registry.
type Pipeline struct {
	inbox  chan protocol.Packet
	outbox chan OutboundItem

	mu        sync.RWMutex
	handlers  map[protocol.MessageID][]handlerEntry
	asyncIDs  map[protocol.MessageID]bool
	blacklist map[protocol.MessageID]bool

	workers    chan struct{}
	minOutGap  time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// Config tunes worker-pool width and outbound pacing.
type Config struct {
	WorkerPoolSize     int
	MinOutboundInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerPoolSize == 0 {
		c.WorkerPoolSize = 8
	}
	if c.MinOutboundInterval == 0 {
		c.MinOutboundInterval = 10 * time.Millisecond
	}
	return c
}

// New builds a Pipeline. Call Start to launch its drain loops.
func New(cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		inbox:     make(chan protocol.Packet, 256),
		outbox:    make(chan OutboundItem, 256),
		handlers:  make(map[protocol.MessageID][]handlerEntry),
		asyncIDs:  make(map[protocol.MessageID]bool),
		blacklist: make(map[protocol.MessageID]bool),
		workers:   make(chan struct{}, cfg.WorkerPoolSize),
		minOutGap: cfg.MinOutboundInterval,
		stopCh:    make(chan struct{}),
	}
}

// Register adds a handler for id. async promotes every handler already
// registered (and every one registered later) for id to asynchronous
// dispatch on the worker pool.
func (p *Pipeline) Register(id protocol.MessageID, async bool, fn Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[id] = append(p.handlers[id], handlerEntry{fn: fn, async: async})
	if async {
		p.asyncIDs[id] = true
	}
}

// Blacklist marks ids to be silently dropped on inbound. Existing and
// future handler registrations are unaffected; dispatch just short-
// circuits before they run.
func (p *Pipeline) Blacklist(ids []protocol.MessageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.blacklist[id] = true
	}
}

// Enqueue places a decoded inbound packet on the inbox.
func (p *Pipeline) Enqueue(pkt protocol.Packet) {
	select {
	case p.inbox <- pkt:
	case <-p.stopCh:
	}
}

// Send places an outbound write thunk on the outbox.
func (p *Pipeline) Send(item OutboundItem) {
	select {
	case p.outbox <- item:
	case <-p.stopCh:
	}
}

// Start launches the inbound and outbound drain loops.
func (p *Pipeline) Start() {
	p.wg.Add(2)
	go p.drainInbox()
	go p.drainOutbox()
}

// Stop closes the drain loops and waits for them to exit. The un-acked
// table cleanup on the owning circuit is the caller's responsibility.
func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pipeline) drainInbox() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case pkt := <-p.inbox:
			p.dispatch(pkt)
		}
	}
}

func (p *Pipeline) dispatch(pkt protocol.Packet) {
	p.mu.RLock()
	if p.blacklist[pkt.ID] {
		p.mu.RUnlock()
		return
	}
	entries := append([]handlerEntry(nil), p.handlers[pkt.ID]...)
	async := p.asyncIDs[pkt.ID]
	p.mu.RUnlock()

	for _, e := range entries {
		fn := e.fn
		if async {
			p.workers <- struct{}{}
			go func() {
				defer func() { <-p.workers }()
				defer recoverHandler(pkt)
				fn(pkt)
			}()
		} else {
			func() {
				defer recoverHandler(pkt)
				fn(pkt)
			}()
		}
	}
}

func recoverHandler(pkt protocol.Packet) {
	if r := recover(); r != nil {
		logging.Error("handler for message id %+v panicked: %v", pkt.ID, r)
	}
}

func (p *Pipeline) drainOutbox() {
	defer p.wg.Done()
	var last time.Time
	for {
		select {
		case <-p.stopCh:
			return
		case item := <-p.outbox:
			if gap := p.minOutGap - time.Since(last); gap > 0 {
				time.Sleep(gap)
			}
			last = time.Now()
			if err := item.Write(); err != nil {
				logging.Warn("outbound write failed: %v", err)
			}
		}
	}
}
