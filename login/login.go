// Package login consumes an already-decoded login RPC response (either
// an XML-RPC struct or an LLSD map, both arrive here as a plain
// map[string]any) and bootstraps the first circuit from it. Issuing the
// RPC itself is out of scope; callers supply the response via a Resolver.
package login

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
	"github.com/cinderblocks/libremetaverse-sub004/session"
)

// Status reports coarse login progress to LoginProgress subscribers.
type Status int

const (
	StatusConnecting Status = iota
	StatusRedirected
	StatusReadingResponse
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusRedirected:
		return "redirected"
	case StatusReadingResponse:
		return "reading_response"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressEvent is emitted at each stage of a login attempt.
type ProgressEvent struct {
	Status    Status
	Message   string
	ReasonKey string
}

// Result is what a successful login yields.
type Result struct {
	AgentID          uuid.UUID
	SessionID        uuid.UUID
	SecureSessionID  uuid.UUID
	CircuitCode      uint32
	SimIP            net.IP
	SimPort          uint16
	RegionHandle     uint64
	SeedCapability   string
	MessageOfTheDay  string
	MaxGroups        int
	AppearanceURL    string
	UDPBlacklist     []protocol.MessageID
	MFAHash          string
}

// Redirect carries an "indeterminate" response's next hop.
type Redirect struct {
	NextURL      string
	NextMethod   string
	NextOptions  map[string]any
	NextDuration time.Duration
}

// Resolver issues (or re-issues) the actual login RPC and returns its
// decoded response as a plain map. Transport is the caller's concern;
// Handler only interprets what comes back.
type Resolver func(ctx context.Context, url, method string, options map[string]any) (map[string]any, error)

// Handler drives one login attempt against sess, emitting ProgressEvent
// to sink as it advances.
type Handler struct {
	Session *session.Session
	Sink    func(ProgressEvent)
}

// New builds a Handler bound to sess.
func New(sess *session.Session, sink func(ProgressEvent)) *Handler {
	return &Handler{Session: sess, Sink: sink}
}

func (h *Handler) emit(ev ProgressEvent) {
	if h.Sink != nil {
		h.Sink(ev)
	}
}

// Login blocks until the login RPC (issued via resolve) resolves to a
// terminal success or failure, following any number of indeterminate
// redirects along the way, then brings up the first circuit and sends
// EconomyDataRequest as the first application-level packet.
func (h *Handler) Login(ctx context.Context, url, method string, options map[string]any, resolve Resolver) (*Result, error) {
	h.emit(ProgressEvent{Status: StatusConnecting})

	for {
		resp, err := resolve(ctx, url, method, options)
		if err != nil {
			h.emit(ProgressEvent{Status: StatusFailed, Message: err.Error(), ReasonKey: "transport_error"})
			return nil, fmt.Errorf("login: rpc request failed: %w", err)
		}

		h.emit(ProgressEvent{Status: StatusReadingResponse})

		if redirect, ok := parseRedirect(resp); ok {
			h.emit(ProgressEvent{Status: StatusRedirected, Message: redirect.NextURL})
			logging.With(logging.Fields{"next_url": redirect.NextURL}).Info("login: following indeterminate redirect")
			select {
			case <-time.After(redirect.NextDuration):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			url, method, options = redirect.NextURL, redirect.NextMethod, redirect.NextOptions
			continue
		}

		if !boolField(resp, "login") {
			reason := stringField(resp, "reason")
			msg := stringField(resp, "message")
			h.emit(ProgressEvent{Status: StatusFailed, Message: msg, ReasonKey: reason})
			return nil, fmt.Errorf("login: rejected by server (%s): %s", reason, msg)
		}

		return h.bootstrap(ctx, resp)
	}
}

func (h *Handler) bootstrap(ctx context.Context, resp map[string]any) (*Result, error) {
	res, err := decodeResult(resp)
	if err != nil {
		h.emit(ProgressEvent{Status: StatusFailed, Message: err.Error(), ReasonKey: "malformed_response"})
		return nil, err
	}

	if blacklist := res.UDPBlacklist; len(blacklist) > 0 {
		h.Session.Pipeline().Blacklist(blacklist)
	}

	remote := &net.UDPAddr{IP: res.SimIP, Port: int(res.SimPort)}
	c, err := h.Session.Connect(ctx, remote, res.CircuitCode, res.SeedCapability, true)
	if err != nil {
		h.emit(ProgressEvent{Status: StatusFailed, Message: err.Error(), ReasonKey: "circuit_timeout"})
		return nil, fmt.Errorf("login: bringing up first circuit: %w", err)
	}

	if err := c.Send(protocol.Packet{ID: protocol.MsgEconomyDataRequest}); err != nil {
		logging.Warn("login: failed to send bootstrap EconomyDataRequest: %v", err)
	}

	h.emit(ProgressEvent{Status: StatusSuccess})
	return res, nil
}

func parseRedirect(resp map[string]any) (Redirect, bool) {
	status, _ := resp["login"].(string)
	if status != "indeterminate" {
		return Redirect{}, false
	}
	nextURL := stringField(resp, "next_url")
	nextMethod := stringField(resp, "next_method")
	seconds := numberField(resp, "next_duration")
	options, _ := resp["next_options"].(map[string]any)
	return Redirect{
		NextURL:      nextURL,
		NextMethod:   nextMethod,
		NextOptions:  options,
		NextDuration: time.Duration(seconds * float64(time.Second)),
	}, true
}

func decodeResult(resp map[string]any) (*Result, error) {
	agentID, err := parseUUIDField(resp, "agent_id")
	if err != nil {
		return nil, err
	}
	sessionID, err := parseUUIDField(resp, "session_id")
	if err != nil {
		return nil, err
	}
	secureSessionID, _ := parseUUIDField(resp, "secure_session_id")

	circuitCode := uint32(numberField(resp, "circuit_code"))
	simIPStr := stringField(resp, "sim_ip")
	simIP := net.ParseIP(simIPStr)
	if simIP == nil {
		return nil, fmt.Errorf("login: invalid sim_ip %q", simIPStr)
	}
	simPort := uint16(numberField(resp, "sim_port"))

	regionX := uint64(numberField(resp, "region_x"))
	regionY := uint64(numberField(resp, "region_y"))
	regionHandle := (regionX*256)<<32 | (regionY * 256)

	return &Result{
		AgentID:         agentID,
		SessionID:       sessionID,
		SecureSessionID: secureSessionID,
		CircuitCode:     circuitCode,
		SimIP:           simIP,
		SimPort:         simPort,
		RegionHandle:    regionHandle,
		SeedCapability:  stringField(resp, "seed_capability"),
		MessageOfTheDay: stringField(resp, "message"),
		MaxGroups:       int(numberField(resp, "max-agent-groups")),
		AppearanceURL:   stringField(resp, "agent_appearance_service"),
		UDPBlacklist:    parseBlacklist(stringField(resp, "udp_blacklist")),
		MFAHash:         stringField(resp, "mfa_hash"),
	}, nil
}

// parseBlacklist turns a CSV of message numbers into MessageID values,
// assumed to be in the large-frequency (4-byte) range as the source
// only ever blacklists high-numbered messages.
func parseBlacklist(csv string) []protocol.MessageID {
	if csv == "" {
		return nil
	}
	var out []protocol.MessageID
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				if n, err := strconv.ParseUint(csv[start:i], 10, 32); err == nil {
					out = append(out, protocol.MessageID{Frequency: protocol.FrequencyLarge, Number: uint32(n)})
				}
			}
			start = i + 1
		}
	}
	return out
}

func parseUUIDField(resp map[string]any, key string) (uuid.UUID, error) {
	s := stringField(resp, key)
	if s == "" {
		return uuid.UUID{}, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("login: invalid %s %q: %w", key, s, err)
	}
	return u, nil
}

func stringField(resp map[string]any, key string) string {
	v, ok := resp[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func numberField(resp map[string]any, key string) float64 {
	v, ok := resp[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func boolField(resp map[string]any, key string) bool {
	v, ok := resp[key]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1"
	default:
		return false
	}
}
