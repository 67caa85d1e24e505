// Package world holds the per-simulator concurrent maps of primitives
// and avatars that the object-update decoder and interpolator mutate.
package world

import (
	"github.com/google/uuid"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/llmath"
)

// TextureEntry is an opaque per-face texture table; the decoder stores
// raw bytes here and leaves parsing to a rendering consumer.
type TextureEntry []byte

// ExtraParams holds the raw extra-parameters sub-blocks (light,
// flexible, sculpt, mesh) keyed by their protocol type tag.
type ExtraParams map[uint16][]byte

// NameValue is one parsed entry of an entity's name-value attribute list.
type NameValue struct {
	Name  string
	Type  string
	Value string
}

// Common holds the fields shared by Primitive and Avatar.
type Common struct {
	LocalID       uint32
	UUID          uuid.UUID
	ParentLocalID uint32
	RegionHandle  uint64

	Position         llmath.Vector3
	Velocity         llmath.Vector3
	Acceleration     llmath.Vector3
	Rotation         llmath.Quaternion
	AngularVelocity  llmath.Vector3
	Scale            llmath.Vector3

	Textures  TextureEntry
	Flags     uint32
	Extra     ExtraParams
	HoverText string
	SoundID   uuid.UUID
	SoundRadius float32
	NameValues []NameValue
}

// ShapeParams is the primitive-shape parameter block unpacked from an
// object-data blob's path/profile fields.
type ShapeParams struct {
	PathCurve    uint8
	ProfileCurve uint8
	PathBegin    float32
	PathEnd      float32
	Scale        llmath.Vector3
	Shear        llmath.Vector3
	Twist        float32
	TwistBegin   float32
	Taper        llmath.Vector3
	Revolutions  float32
	Skew         float32
	ProfileBegin float32
	ProfileEnd   float32
	ProfileHollow float32
}

// JointType classifies a primitive's physics joint, if any.
type JointType uint8

const (
	JointInvalid JointType = iota
	JointHinge
	JointPoint
)

// Primitive is a non-avatar world entity: an object, linkset root, or
// linkset child.
type Primitive struct {
	Common
	Shape     ShapeParams
	JointType JointType
}

// Avatar is an agent-controlled entity.
type Avatar struct {
	Common
	CollisionPlane llmath.Vector4
	SittingOn      uint32 // local id of the prim seated on, 0 if standing
}
