// Package throttle implements the per-circuit bandwidth budget: seven named
// traffic classes, each clamped to a server-defined range, encoded on the
// wire as seven consecutive little-endian 32-bit floats.
package throttle

import (
	"encoding/binary"
	"math"

	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

// Channel identifies one of the seven throttle classes, in wire order.
type Channel int

const (
	Resend Channel = iota
	Land
	Wind
	Cloud
	Task
	Texture
	Asset
	numChannels
)

// NumChannels returns the number of throttle channels (7).
func NumChannels() Channel { return numChannels }

func (c Channel) String() string {
	switch c {
	case Resend:
		return "Resend"
	case Land:
		return "Land"
	case Wind:
		return "Wind"
	case Cloud:
		return "Cloud"
	case Task:
		return "Task"
	case Texture:
		return "Texture"
	case Asset:
		return "Asset"
	default:
		return "Unknown"
	}
}

type clampRange struct {
	min, max float32
}

// clamps holds the enforced range for each channel, bits per second.
var clamps = [numChannels]clampRange{
	Resend:  {10000, 150000},
	Land:    {0, 170000},
	Wind:    {0, 34000},
	Cloud:   {0, 34000},
	Task:    {4000, 1338000},
	Texture: {4000, 446000},
	Asset:   {10000, 220000},
}

// ratios distribute a total bandwidth figure across channels when the
// caller sets an aggregate rather than individual rates. They sum to
// 1.004, so before clamping the channels add up to slightly more than the
// total.
var ratios = [numChannels]float64{
	Resend:  0.100,
	Land:    0.173,
	Wind:    0.050,
	Cloud:   0.050,
	Task:    0.235,
	Texture: 0.235,
	Asset:   0.161,
}

func clampValue(c Channel, v float32) float32 {
	r := clamps[c]
	if v < r.min {
		return r.min
	}
	if v > r.max {
		return r.max
	}
	return v
}

// Rates holds the seven per-channel bit rates of a circuit's throttle.
type Rates [numChannels]float32

// SetTotal distributes total bits/s across the seven channels by their
// fixed ratios, then clamps each result into its enforced range.
func SetTotal(total float64) Rates {
	var r Rates
	for c := Channel(0); c < numChannels; c++ {
		r[c] = clampValue(c, float32(total*ratios[c]))
	}
	return r
}

// Clamp returns r with every channel clamped into its enforced range.
func (r Rates) Clamp() Rates {
	var out Rates
	for c := Channel(0); c < numChannels; c++ {
		out[c] = clampValue(c, r[c])
	}
	return out
}

// Total sums the seven channel rates.
func (r Rates) Total() float64 {
	var sum float64
	for _, v := range r {
		sum += float64(v)
	}
	return sum
}

// Encode writes the throttle as the 28-byte little-endian float array the
// wire protocol expects (AgentThrottle message body).
func Encode(r Rates) []byte {
	buf := make([]byte, 4*numChannels)
	for i, v := range r {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Decode parses a 28-byte little-endian float array into Rates, clamping
// each channel into its enforced range as it is read.
func Decode(buf []byte) (Rates, error) {
	if len(buf) < 4*int(numChannels) {
		return Rates{}, &protocol.Error{Kind: protocol.PayloadTruncated, Msg: "throttle block too short"}
	}
	var r Rates
	for c := Channel(0); c < numChannels; c++ {
		bits := binary.LittleEndian.Uint32(buf[c*4:])
		r[c] = clampValue(c, math.Float32frombits(bits))
	}
	return r, nil
}
