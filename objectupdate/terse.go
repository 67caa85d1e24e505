package objectupdate

import (
	"github.com/cinderblocks/libremetaverse-sub004/pkg/llmath"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
)

// terseBlock is one entity's ImprovedTerseObjectUpdate payload.
type terseBlock struct {
	LocalID        uint32
	IsAvatar       bool
	CollisionPlane llmath.Vector4
	Motion         kinematics
	TextureEntry   []byte
}

// decodeTerseBlock parses a terse update block: local id, state, an
// avatar flag gating an optional 16-byte collision plane, a
// full-precision 12-byte position, then compact (u16-quantized)
// velocity/acceleration/rotation/angular-velocity, and an optional
// trailing texture-entry blob.
func decodeTerseBlock(r *protocol.Reader) (terseBlock, error) {
	localID, err := r.U32()
	if err != nil {
		return terseBlock{}, err
	}
	_, err = r.U8() // state
	if err != nil {
		return terseBlock{}, err
	}
	avatarFlag, err := r.U8()
	if err != nil {
		return terseBlock{}, err
	}

	var cp llmath.Vector4
	isAvatar := avatarFlag != 0
	if isAvatar {
		cpBytes, err := r.Bytes(16)
		if err != nil {
			return terseBlock{}, err
		}
		cp = vec4FromBytes(cpBytes)
	}

	pos, err := readVec3(r)
	if err != nil {
		return terseBlock{}, err
	}

	compact, err := r.Bytes(26) // velocity+acceleration+rotation+angular velocity, u16-quantized
	if err != nil {
		return terseBlock{}, err
	}
	motion := parseCompactMotion(compact)
	motion.Position = pos

	var texture []byte
	if r.Remaining() > 0 {
		texture, err = r.VarBytes2()
		if err != nil {
			return terseBlock{}, err
		}
	}

	return terseBlock{
		LocalID:        localID,
		IsAvatar:       isAvatar,
		CollisionPlane: cp,
		Motion:         motion,
		TextureEntry:   texture,
	}, nil
}

// parseCompactMotion reads the 26-byte velocity/acceleration/rotation/
// angular-velocity tuple shared by terse updates: 3+3+4+3 = 13 u16s.
func parseCompactMotion(b []byte) kinematics {
	vel := llmath.Vector3{
		X: unpackU16(b[0:2], velMin, velMax),
		Y: unpackU16(b[2:4], velMin, velMax),
		Z: unpackU16(b[4:6], velMin, velMax),
	}
	acc := llmath.Vector3{
		X: unpackU16(b[6:8], accelMin, accelMax),
		Y: unpackU16(b[8:10], accelMin, accelMax),
		Z: unpackU16(b[10:12], accelMin, accelMax),
	}
	rot := llmath.Quaternion{
		X: unpackU16(b[12:14], rotMin, rotMax),
		Y: unpackU16(b[14:16], rotMin, rotMax),
		Z: unpackU16(b[16:18], rotMin, rotMax),
		W: unpackU16(b[18:20], rotMin, rotMax),
	}
	angVel := llmath.Vector3{
		X: unpackU16(b[20:22], angVelMin, angVelMax),
		Y: unpackU16(b[22:24], angVelMin, angVelMax),
		Z: unpackU16(b[24:26], angVelMin, angVelMax),
	}
	return kinematics{Velocity: vel, Acceleration: acc, Rotation: rot.Normalize(), AngularVelocity: angVel}
}
