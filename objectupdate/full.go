package objectupdate

import (
	"strings"

	"github.com/google/uuid"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/logging"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// PCodeAvatar is the primitive-type code the wire protocol reserves for
// avatar entities; every other pcode is a Primitive.
const PCodeAvatar = 47

// flagZlibCompressed marks an ObjectUpdate block whose object-data blob
// is zlib-compressed; decoding that payload is out of scope, so such
// blocks are logged and skipped rather than attempted.
const flagZlibCompressed = 1 << 13

// decodeFullBlock parses one entity block of a full ObjectUpdate
// message: identity, packed motion state, shape, and the trailing
// variable-length sub-blocks (texture entry/anim, name-value, extra
// params, sound, joint).
func decodeFullBlock(r *protocol.Reader) (prim *world.Primitive, avatar *world.Avatar, skip bool, err error) {
	localID, err := r.U32()
	if err != nil {
		return nil, nil, false, err
	}
	_, err = r.U8() // state
	if err != nil {
		return nil, nil, false, err
	}
	fullIDBytes, err := r.Bytes(16)
	if err != nil {
		return nil, nil, false, err
	}
	fullID, _ := uuid.FromBytes(fullIDBytes)
	_, err = r.U32() // crc
	if err != nil {
		return nil, nil, false, err
	}
	pcode, err := r.U8()
	if err != nil {
		return nil, nil, false, err
	}
	_, err = r.U8() // material
	if err != nil {
		return nil, nil, false, err
	}
	_, err = r.U8() // click action
	if err != nil {
		return nil, nil, false, err
	}
	scale, err := readVec3(r)
	if err != nil {
		return nil, nil, false, err
	}

	objectDataBlob, err := r.VarBytes1()
	if err != nil {
		return nil, nil, false, err
	}

	parentID, err := r.U32()
	if err != nil {
		return nil, nil, false, err
	}
	flags, err := r.U32()
	if err != nil {
		return nil, nil, false, err
	}
	if flags&flagZlibCompressed != 0 {
		logging.Warn("objectupdate: local id %d has zlib-compressed object data, skipping", localID)
		return nil, nil, true, nil
	}

	shape, err := parseShape(r)
	if err != nil {
		return nil, nil, false, err
	}

	textureEntry, err := r.VarBytes2()
	if err != nil {
		return nil, nil, false, err
	}
	textureAnim, err := r.VarBytes1()
	if err != nil {
		return nil, nil, false, err
	}
	nameValueRaw, err := r.VarBytes2()
	if err != nil {
		return nil, nil, false, err
	}
	extraParamsRaw, err := r.VarBytes1()
	if err != nil {
		return nil, nil, false, err
	}

	var soundID uuid.UUID
	var soundRadius float32
	if flags&compressedFlagParticles != 0 {
		if _, err := r.Bytes(86); err != nil { // particle system, not interpreted
			return nil, nil, false, err
		}
	}
	if flags&compressedFlagSound != 0 {
		soundIDBytes, err := r.Bytes(16)
		if err != nil {
			return nil, nil, false, err
		}
		soundID, _ = uuid.FromBytes(soundIDBytes)
		if _, err := r.F32(); err != nil { // gain
			return nil, nil, false, err
		}
		if _, err := r.U8(); err != nil { // flags
			return nil, nil, false, err
		}
		soundRadius, err = r.F32()
		if err != nil {
			return nil, nil, false, err
		}
	}

	jointTypeRaw, err := r.U8()
	if err != nil {
		return nil, nil, false, err
	}
	jointType := world.JointType(jointTypeRaw)
	if jointType != world.JointInvalid {
		if _, err := readVec3(r); err != nil { // joint pivot, not interpreted
			return nil, nil, false, err
		}
		if _, err := readVec3(r); err != nil { // joint axis/anchor, not interpreted
			return nil, nil, false, err
		}
	}

	var common world.Common
	common.LocalID = localID
	common.UUID = fullID
	common.ParentLocalID = parentID
	common.Flags = flags
	common.Scale = scale
	common.Textures = world.TextureEntry(textureEntry)
	common.NameValues = parseNameValues(nameValueRaw)
	common.Extra = parseExtraParams(extraParamsRaw)
	common.SoundID = soundID
	common.SoundRadius = soundRadius
	_ = textureAnim

	parsed, err := unpackObjectData(objectDataBlob)
	if err != nil {
		logging.Warn("objectupdate: local id %d: %v; skipping block", localID, err)
		return nil, nil, true, nil
	}
	common.Position = parsed.Motion.Position
	common.Velocity = parsed.Motion.Velocity
	common.Acceleration = parsed.Motion.Acceleration
	common.Rotation = parsed.Motion.Rotation
	common.AngularVelocity = parsed.Motion.AngularVelocity

	if pcode == PCodeAvatar || parsed.IsAvatar {
		a := &world.Avatar{Common: common, CollisionPlane: parsed.CollisionPlane, SittingOn: parentID}
		return nil, a, false, nil
	}
	p := &world.Primitive{Common: common, Shape: shape, JointType: jointType}
	return p, nil, false, nil
}

func parseNameValues(raw []byte) []world.NameValue {
	text := strings.TrimRight(string(raw), "\x00")
	if text == "" {
		return nil
	}
	var out []world.NameValue
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		nv := world.NameValue{Name: fields[0]}
		if len(fields) > 1 {
			nv.Type = fields[1]
		}
		if len(fields) > 2 {
			nv.Value = fields[2]
		}
		out = append(out, nv)
	}
	return out
}

func parseExtraParams(raw []byte) world.ExtraParams {
	if len(raw) == 0 {
		return nil
	}
	r := protocol.NewReader(raw)
	count, err := r.U8()
	if err != nil {
		return nil
	}
	out := make(world.ExtraParams, count)
	for i := 0; i < int(count); i++ {
		paramType, err := r.U16()
		if err != nil {
			break
		}
		data, err := r.VarBytes2()
		if err != nil {
			break
		}
		out[paramType] = data
	}
	return out
}
