// Package llmath provides the small set of vector, quaternion and
// region-handle helpers the protocol decoder and interpolator need.
//
// This is deliberately minimal: full viewer-grade vector math (helper math
// for vectors, quaternions, UUID) is an external collaborator of the core
// per the spec, not something this module tries to be a polished library
// for.
package llmath

import "math"

// Vector3 is a single-precision 3-component vector, matching the wire
// layout of position/velocity/acceleration/angular-velocity fields.
type Vector3 struct {
	X, Y, Z float32
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vector3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Vector4 is a 4-component vector, used for the raw collision-plane field.
type Vector4 struct {
	X, Y, Z, W float32
}

// Quaternion is a unit quaternion representing orientation.
type Quaternion struct {
	X, Y, Z, W float32
}

// IdentityQuaternion is the no-rotation orientation.
var IdentityQuaternion = Quaternion{0, 0, 0, 1}

// QuaternionFromXYZ reconstructs the W component of a quaternion encoded
// on the wire with only its X, Y, Z terms (the protocol's three-component
// quaternion encoding), per the identity X²+Y²+Z²+W²=1.
func QuaternionFromXYZ(x, y, z float32) Quaternion {
	wsq := 1.0 - float64(x)*float64(x) - float64(y)*float64(y) - float64(z)*float64(z)
	var w float32
	if wsq > 0 {
		w = float32(math.Sqrt(wsq))
	}
	return Quaternion{x, y, z, w}
}

// Normalize returns q scaled to unit length, or the identity quaternion
// if q is degenerate.
func (q Quaternion) Normalize() Quaternion {
	mag := math.Sqrt(float64(q.X)*float64(q.X) + float64(q.Y)*float64(q.Y) + float64(q.Z)*float64(q.Z) + float64(q.W)*float64(q.W))
	if mag < 1e-12 {
		return IdentityQuaternion
	}
	inv := float32(1.0 / mag)
	return Quaternion{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Multiply returns q * o (apply o, then q), the standard Hamilton product.
func (q Quaternion) Multiply(o Quaternion) Quaternion {
	return Quaternion{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// FromAngleAxis builds the rotation of angle radians about axis.
func FromAngleAxis(angle float64, axis Vector3) Quaternion {
	if axis.LengthSquared() < 1e-12 {
		return IdentityQuaternion
	}
	half := angle * 0.5
	s := float32(math.Sin(half))
	norm := float32(math.Sqrt(float64(axis.LengthSquared())))
	ax := axis.Scale(1 / norm)
	return Quaternion{ax.X * s, ax.Y * s, ax.Z * s, float32(math.Cos(half))}
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
