// Package interpolate runs the periodic dead-reckoning tick that
// advances every tracked primitive and avatar's position and rotation
// between object updates.
package interpolate

import (
	"math"
	"time"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/llmath"
	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// havokStep is the fixed sub-step the historical integration formula
// subtracts from the tick delta; preserved verbatim for behavioral
// compatibility with the source.
const havokStep = 1.0 / 45.0

const defaultInterval = 50 * time.Millisecond

// angularVelocityEpsilon is the squared-magnitude threshold below which
// angular motion is not applied; below this the rotation is treated as
// numerically at rest.
const angularVelocityEpsilon = 1e-5

// Config tunes the tick interval and the velocity-guard compatibility
// behavior.
type Config struct {
	Interval time.Duration

	// CompatVelocityGuard preserves the source's inverted linear-motion
	// guard: integration only runs when velocity is exactly zero. This
	// is very likely a bug in the original (see DESIGN.md), but the
	// spec requires preserving it verbatim. nil (the default) or a
	// pointer to true keeps the guard; a pointer to false applies the
	// corrected predicate instead.
	CompatVelocityGuard *bool
}

// compatGuard reports whether the historical velocity guard applies.
func (c Config) compatGuard() bool {
	return c.CompatVelocityGuard == nil || *c.CompatVelocityGuard
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	return c
}

// SimulatorStore is one simulator's store plus its current reported
// time-dilation, used to scale the tick's elapsed delta.
type SimulatorStore struct {
	Store    *world.Store
	Dilation float32
}

// Ticker drives the interpolation loop across a set of simulators.
type Ticker struct {
	cfg  Config
	sims func() []SimulatorStore

	stopCh chan struct{}
	done   chan struct{}
}

// New builds a Ticker. sims is called once per tick to get the current
// set of connected simulators' stores.
func New(cfg Config, sims func() []SimulatorStore) *Ticker {
	return &Ticker{
		cfg:    cfg.withDefaults(),
		sims:   sims,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the tick loop in a new goroutine. Each tick reschedules
// itself at max(50 ms, interval - work_time), per the source's
// cooperative-rescheduling behavior.
func (t *Ticker) Start() {
	go t.loop()
}

// Stop ends the tick loop and waits for it to exit.
func (t *Ticker) Stop() {
	close(t.stopCh)
	<-t.done
}

func (t *Ticker) loop() {
	defer close(t.done)
	timer := time.NewTimer(t.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-timer.C:
			start := time.Now()
			t.tick()
			work := time.Since(start)
			next := t.cfg.Interval - work
			if next < defaultInterval {
				next = defaultInterval
			}
			timer.Reset(next)
		}
	}
}

func (t *Ticker) tick() {
	for _, sim := range t.sims() {
		prims, avatars := sim.Store.Snapshot()
		for _, p := range prims {
			if p.JointType != world.JointInvalid {
				logging.Warn("interpolate: skipping jointed primitive local id %d (joint type %v)", p.LocalID, p.JointType)
				continue
			}
			advance(&p.Common, sim.Dilation, t.cfg.Interval, t.cfg.compatGuard())
		}
		for _, a := range avatars {
			advance(&a.Common, sim.Dilation, t.cfg.Interval, t.cfg.compatGuard())
		}
	}
}

// advance applies one Havok-style integration step to c's position and
// rotation, scaling interval by dilation.
func advance(c *world.Common, dilation float32, interval time.Duration, compatGuard bool) {
	delta := float32(interval.Seconds()) * dilation

	linearGuardPasses := c.Acceleration.LengthSquared() > 0
	if compatGuard {
		linearGuardPasses = linearGuardPasses && c.Velocity.IsZero()
	}
	if linearGuardPasses {
		half := 0.5 * (delta - havokStep)
		c.Position = c.Position.Add(c.Velocity.Add(c.Acceleration.Scale(half)).Scale(delta))
		c.Velocity = c.Velocity.Add(c.Acceleration.Scale(delta))
	}

	angSq := c.AngularVelocity.LengthSquared()
	if angSq > angularVelocityEpsilon {
		magnitude := math.Sqrt(float64(angSq))
		deltaRot := llmath.FromAngleAxis(magnitude*float64(delta), c.AngularVelocity)
		c.Rotation = c.Rotation.Multiply(deltaRot).Normalize()
	}
}
