package objectupdate

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/cinderblocks/libremetaverse-sub004/pkg/llmath"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// Compressed-update optional-segment bits. The segments appear in the
// byte stream in bit order, except that the tree species (bit 1) comes
// before the scratch pad (bit 0).
const (
	compressedFlagScratchPad  = 1 << 0
	compressedFlagTree        = 1 << 1
	compressedFlagText        = 1 << 2
	compressedFlagMediaURL    = 1 << 3
	compressedFlagParticles   = 1 << 4
	compressedFlagExtraParams = 1 << 5
	compressedFlagSound       = 1 << 6
	compressedFlagNameValue   = 1 << 7
	compressedFlagTextureAnim = 1 << 8
)

type compressedResult struct {
	Common   world.Common
	Shape    world.ShapeParams
	IsAvatar bool
}

// decodeCompressedBlock parses one ObjectUpdateCompressed entity: fixed
// identity/motion header, then the optional segments gated by flags in
// their fixed wire order, then shape and texture entry.
func decodeCompressedBlock(r *protocol.Reader) (compressedResult, error) {
	fullIDBytes, err := r.Bytes(16)
	if err != nil {
		return compressedResult{}, err
	}
	fullID, _ := uuid.FromBytes(fullIDBytes)
	localID, err := r.U32()
	if err != nil {
		return compressedResult{}, err
	}
	pcode, err := r.U8()
	if err != nil {
		return compressedResult{}, err
	}
	flags, err := r.U32()
	if err != nil {
		return compressedResult{}, err
	}
	_, err = r.U8() // state
	if err != nil {
		return compressedResult{}, err
	}
	_, err = r.U32() // crc
	if err != nil {
		return compressedResult{}, err
	}
	_, err = r.U8() // material
	if err != nil {
		return compressedResult{}, err
	}
	_, err = r.U8() // click action
	if err != nil {
		return compressedResult{}, err
	}
	scale, err := readVec3(r)
	if err != nil {
		return compressedResult{}, err
	}
	pos, err := readVec3(r)
	if err != nil {
		return compressedResult{}, err
	}
	rotXYZ, err := readVec3(r)
	if err != nil {
		return compressedResult{}, err
	}

	common := world.Common{
		UUID:         fullID,
		LocalID:      localID,
		Scale:        scale,
		Position:     pos,
		Rotation:     llmath.QuaternionFromXYZ(rotXYZ.X, rotXYZ.Y, rotXYZ.Z),
		Flags:        flags,
	}

	if flags&compressedFlagTree != 0 {
		if _, err := r.U8(); err != nil { // tree species
			return compressedResult{}, err
		}
	}
	if flags&compressedFlagScratchPad != 0 {
		if _, err := r.VarBytes1(); err != nil { // opaque, not interpreted
			return compressedResult{}, err
		}
	}
	if flags&compressedFlagText != 0 {
		text, err := r.CString()
		if err != nil {
			return compressedResult{}, err
		}
		if _, err := r.Bytes(4); err != nil { // RGBA
			return compressedResult{}, err
		}
		common.HoverText = text
	}
	if flags&compressedFlagMediaURL != 0 {
		if _, err := r.CString(); err != nil {
			return compressedResult{}, err
		}
	}
	if flags&compressedFlagParticles != 0 {
		if _, err := r.Bytes(86); err != nil {
			return compressedResult{}, err
		}
	}
	if flags&compressedFlagExtraParams != 0 {
		raw, err := r.VarBytes1()
		if err != nil {
			return compressedResult{}, err
		}
		common.Extra = parseExtraParams(raw)
	}
	if flags&compressedFlagSound != 0 {
		soundIDBytes, err := r.Bytes(16)
		if err != nil {
			return compressedResult{}, err
		}
		soundID, _ := uuid.FromBytes(soundIDBytes)
		if _, err := r.F32(); err != nil { // gain
			return compressedResult{}, err
		}
		if _, err := r.U8(); err != nil { // flags
			return compressedResult{}, err
		}
		radius, err := r.F32()
		if err != nil {
			return compressedResult{}, err
		}
		common.SoundID = soundID
		common.SoundRadius = radius
	}
	if flags&compressedFlagNameValue != 0 {
		nv, err := r.CString()
		if err != nil {
			return compressedResult{}, err
		}
		common.NameValues = parseNameValues([]byte(nv))
	}

	shape, err := parseShape(r)
	if err != nil {
		return compressedResult{}, err
	}

	textureLenBytes, err := r.Bytes(4)
	if err != nil {
		return compressedResult{}, err
	}
	textureLen := binary.LittleEndian.Uint32(textureLenBytes)
	textureEntry, err := r.Bytes(int(textureLen))
	if err != nil {
		return compressedResult{}, err
	}
	common.Textures = world.TextureEntry(textureEntry)

	if flags&compressedFlagTextureAnim != 0 {
		if _, err := r.VarBytes1(); err != nil {
			return compressedResult{}, err
		}
	}

	return compressedResult{Common: common, Shape: shape, IsAvatar: pcode == PCodeAvatar}, nil
}
