package interpolate

import (
	"math"
	"testing"
	"time"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/llmath"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

// TestHavokQuirkZeroVelocity mirrors the spec scenario: a=(0,0,1),
// v=(0,0,0), dilation 1, delta=100ms. One tick yields
// p += (a * (0.5*(delta - 1/45))) * delta and v += a*delta.
func TestHavokQuirkZeroVelocity(t *testing.T) {
	c := &world.Common{
		Acceleration: llmath.Vector3{Z: 1},
		Rotation:     llmath.IdentityQuaternion,
	}
	delta := 100 * time.Millisecond
	advance(c, 1.0, delta, true)

	deltaSec := float32(delta.Seconds())
	half := 0.5 * (deltaSec - float32(havokStep))
	wantPosZ := (0 + 1*half) * deltaSec
	wantVelZ := float32(1) * deltaSec

	if !almostEqual(c.Position.Z, wantPosZ) {
		t.Errorf("Position.Z = %v, want %v", c.Position.Z, wantPosZ)
	}
	if !almostEqual(c.Velocity.Z, wantVelZ) {
		t.Errorf("Velocity.Z = %v, want %v", c.Velocity.Z, wantVelZ)
	}
}

// TestHavokQuirkNonZeroVelocityNotAdvanced confirms the guard: a
// primitive with non-zero velocity is NOT advanced linearly under the
// compatibility quirk.
func TestHavokQuirkNonZeroVelocityNotAdvanced(t *testing.T) {
	c := &world.Common{
		Velocity:     llmath.Vector3{X: 5},
		Acceleration: llmath.Vector3{Z: 1},
	}
	advance(c, 1.0, 100*time.Millisecond, true)

	if !c.Position.IsZero() {
		t.Errorf("Position = %+v, want zero (guard should have blocked linear advance)", c.Position)
	}
	if c.Velocity.X != 5 {
		t.Errorf("Velocity.X = %v, want unchanged 5", c.Velocity.X)
	}
}

func TestCorrectedGuardAdvancesRegardlessOfVelocity(t *testing.T) {
	c := &world.Common{
		Velocity:     llmath.Vector3{X: 5},
		Acceleration: llmath.Vector3{Z: 1},
	}
	advance(c, 1.0, 100*time.Millisecond, false)

	if c.Position.IsZero() {
		t.Error("corrected guard should advance position even with non-zero velocity")
	}
}

func TestAngularMotionBelowEpsilonSkipped(t *testing.T) {
	c := &world.Common{
		Rotation:        llmath.IdentityQuaternion,
		AngularVelocity: llmath.Vector3{X: 0.001},
	}
	advance(c, 1.0, 100*time.Millisecond, true)
	if c.Rotation != llmath.IdentityQuaternion {
		t.Error("sub-epsilon angular velocity should not rotate the entity")
	}
}

func TestAngularMotionAboveEpsilonRotates(t *testing.T) {
	c := &world.Common{
		Rotation:        llmath.IdentityQuaternion,
		AngularVelocity: llmath.Vector3{Z: 1},
	}
	advance(c, 1.0, 100*time.Millisecond, true)
	if c.Rotation == llmath.IdentityQuaternion {
		t.Error("angular velocity above epsilon should rotate the entity")
	}
}

func TestDilationScalesDelta(t *testing.T) {
	c1 := &world.Common{Acceleration: llmath.Vector3{X: 1}}
	c2 := &world.Common{Acceleration: llmath.Vector3{X: 1}}
	advance(c1, 1.0, 100*time.Millisecond, true)
	advance(c2, 0.5, 100*time.Millisecond, true)
	if c2.Position.X >= c1.Position.X {
		t.Errorf("lower dilation should integrate less: c1.X=%v c2.X=%v", c1.Position.X, c2.Position.X)
	}
}
