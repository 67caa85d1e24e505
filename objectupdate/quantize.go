package objectupdate

import "encoding/binary"

// unpackU16 maps a little-endian uint16 linearly from [0, 65535] onto
// [lo, hi], the fixed integer-to-float unpacking the wire protocol uses
// for compact position/velocity/rotation/angular-velocity fields.
func unpackU16(b []byte, lo, hi float32) float32 {
	v := binary.LittleEndian.Uint16(b)
	return lo + (float32(v)/65535.0)*(hi-lo)
}

// unpackU8 is unpackU16's ultra-compact counterpart, used by the
// 16-byte packed object-data variant.
func unpackU8(b byte, lo, hi float32) float32 {
	return lo + (float32(b)/255.0)*(hi-lo)
}

// Quantization ranges shared by the compact (32-byte), avatar-compact
// (48-byte), and ultra-compact (16-byte) object-data layouts.
const (
	posXYMin, posXYMax = -128.0, 384.0
	posZMin, posZMax   = -256.0, 512.0
	velMin, velMax     = -256.0, 256.0
	accelMin, accelMax = -256.0, 256.0
	rotMin, rotMax     = -1.0, 1.0
	angVelMin, angVelMax = -256.0, 256.0
)
