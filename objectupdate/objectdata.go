package objectupdate

import (
	"github.com/cinderblocks/libremetaverse-sub004/pkg/llmath"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

// kinematics is the motion state unpacked from a packed object-data blob:
// position, velocity, acceleration, rotation, and angular velocity.
type kinematics struct {
	Position        llmath.Vector3
	Velocity        llmath.Vector3
	Acceleration    llmath.Vector3
	Rotation        llmath.Quaternion
	AngularVelocity llmath.Vector3
}

// parsedObjectData is one decoded object-data blob: whether its layout is
// an avatar variant, the collision-plane 4-vector prefix those variants
// carry, and the motion state.
type parsedObjectData struct {
	IsAvatar       bool
	CollisionPlane llmath.Vector4
	Motion         kinematics
}

// unpackObjectData selects a decode variant by blob length, per the
// spec's total mapping over {16, 32, 48, 60, 76}. Any other length is a
// protocol error and the caller should skip the block, not the packet.
func unpackObjectData(blob []byte) (parsedObjectData, error) {
	switch len(blob) {
	case 76:
		return parseObjectData76(blob)
	case 60:
		return parseObjectData60(blob)
	case 48:
		return parseObjectData48(blob)
	case 32:
		return parseObjectData32(blob)
	case 16:
		return parseObjectData16(blob)
	default:
		return parsedObjectData{}, &protocol.Error{
			Kind: protocol.BlockCountOverflow,
			Msg:  "object-data blob has unsupported length",
		}
	}
}

func parseObjectData76(blob []byte) (parsedObjectData, error) {
	cp := vec4FromBytes(blob[0:16])
	m, err := parseKinematics60(blob[16:76])
	if err != nil {
		return parsedObjectData{}, err
	}
	return parsedObjectData{IsAvatar: true, CollisionPlane: cp, Motion: m}, nil
}

func parseObjectData60(blob []byte) (parsedObjectData, error) {
	m, err := parseKinematics60(blob)
	if err != nil {
		return parsedObjectData{}, err
	}
	return parsedObjectData{IsAvatar: false, Motion: m}, nil
}

// parseKinematics60 reads the full-precision 60-byte tuple: 12B
// position, 12B velocity, 12B acceleration, 12B rotation (3-component,
// W reconstructed), 12B angular velocity — each a little-endian
// float32 triple.
func parseKinematics60(b []byte) (kinematics, error) {
	r := protocol.NewReader(b)
	pos, err := readVec3(r)
	if err != nil {
		return kinematics{}, err
	}
	vel, err := readVec3(r)
	if err != nil {
		return kinematics{}, err
	}
	acc, err := readVec3(r)
	if err != nil {
		return kinematics{}, err
	}
	rotXYZ, err := readVec3(r)
	if err != nil {
		return kinematics{}, err
	}
	angVel, err := readVec3(r)
	if err != nil {
		return kinematics{}, err
	}
	return kinematics{
		Position:        pos,
		Velocity:        vel,
		Acceleration:    acc,
		Rotation:        llmath.QuaternionFromXYZ(rotXYZ.X, rotXYZ.Y, rotXYZ.Z),
		AngularVelocity: angVel,
	}, nil
}

func parseObjectData48(blob []byte) (parsedObjectData, error) {
	cp := vec4FromBytes(blob[0:16])
	m := parseKinematics32(blob[16:48])
	return parsedObjectData{IsAvatar: true, CollisionPlane: cp, Motion: m}, nil
}

func parseObjectData32(blob []byte) (parsedObjectData, error) {
	return parsedObjectData{IsAvatar: false, Motion: parseKinematics32(blob)}, nil
}

// parseKinematics32 reads the compact 32-byte tuple: position (3x u16,
// xy scaled to [-128,384], z to [-256,512]), velocity/acceleration (3x
// u16 each, [-256,256]), rotation (4x u16, [-1,1]), angular velocity
// (3x u16, [-256,256]).
func parseKinematics32(b []byte) kinematics {
	pos := llmath.Vector3{
		X: unpackU16(b[0:2], posXYMin, posXYMax),
		Y: unpackU16(b[2:4], posXYMin, posXYMax),
		Z: unpackU16(b[4:6], posZMin, posZMax),
	}
	vel := llmath.Vector3{
		X: unpackU16(b[6:8], velMin, velMax),
		Y: unpackU16(b[8:10], velMin, velMax),
		Z: unpackU16(b[10:12], velMin, velMax),
	}
	acc := llmath.Vector3{
		X: unpackU16(b[12:14], accelMin, accelMax),
		Y: unpackU16(b[14:16], accelMin, accelMax),
		Z: unpackU16(b[16:18], accelMin, accelMax),
	}
	rot := llmath.Quaternion{
		X: unpackU16(b[18:20], rotMin, rotMax),
		Y: unpackU16(b[20:22], rotMin, rotMax),
		Z: unpackU16(b[22:24], rotMin, rotMax),
		W: unpackU16(b[24:26], rotMin, rotMax),
	}
	angVel := llmath.Vector3{
		X: unpackU16(b[26:28], angVelMin, angVelMax),
		Y: unpackU16(b[28:30], angVelMin, angVelMax),
		Z: unpackU16(b[30:32], angVelMin, angVelMax),
	}
	return kinematics{Position: pos, Velocity: vel, Acceleration: acc, Rotation: rot.Normalize(), AngularVelocity: angVel}
}

func parseObjectData16(blob []byte) (parsedObjectData, error) {
	pos := llmath.Vector3{
		X: unpackU8(blob[0], posXYMin, posXYMax),
		Y: unpackU8(blob[1], posXYMin, posXYMax),
		Z: unpackU8(blob[2], posZMin, posZMax),
	}
	vel := llmath.Vector3{
		X: unpackU8(blob[3], velMin, velMax),
		Y: unpackU8(blob[4], velMin, velMax),
		Z: unpackU8(blob[5], velMin, velMax),
	}
	acc := llmath.Vector3{
		X: unpackU8(blob[6], accelMin, accelMax),
		Y: unpackU8(blob[7], accelMin, accelMax),
		Z: unpackU8(blob[8], accelMin, accelMax),
	}
	rot := llmath.Quaternion{
		X: unpackU8(blob[9], rotMin, rotMax),
		Y: unpackU8(blob[10], rotMin, rotMax),
		Z: unpackU8(blob[11], rotMin, rotMax),
		W: unpackU8(blob[12], rotMin, rotMax),
	}
	angVel := llmath.Vector3{
		X: unpackU8(blob[13], angVelMin, angVelMax),
		Y: unpackU8(blob[14], angVelMin, angVelMax),
		Z: unpackU8(blob[15], angVelMin, angVelMax),
	}
	return parsedObjectData{Motion: kinematics{
		Position: pos, Velocity: vel, Acceleration: acc,
		Rotation: rot.Normalize(), AngularVelocity: angVel,
	}}, nil
}

func readVec3(r *protocol.Reader) (llmath.Vector3, error) {
	x, err := r.F32()
	if err != nil {
		return llmath.Vector3{}, err
	}
	y, err := r.F32()
	if err != nil {
		return llmath.Vector3{}, err
	}
	z, err := r.F32()
	if err != nil {
		return llmath.Vector3{}, err
	}
	return llmath.Vector3{X: x, Y: y, Z: z}, nil
}

func vec4FromBytes(b []byte) llmath.Vector4 {
	r := protocol.NewReader(b)
	x, _ := r.F32()
	y, _ := r.F32()
	z, _ := r.F32()
	w, _ := r.F32()
	return llmath.Vector4{X: x, Y: y, Z: z, W: w}
}
