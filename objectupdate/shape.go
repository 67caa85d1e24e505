package objectupdate

import (
	"github.com/cinderblocks/libremetaverse-sub004/pkg/llmath"
	"github.com/cinderblocks/libremetaverse-sub004/protocol"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// parseShape reads the fixed 22-byte primitive-shape parameter block
// (path and profile fields) carried inside full and compressed object
// updates, using the protocol's integer-to-float unpackings.
func parseShape(r *protocol.Reader) (world.ShapeParams, error) {
	pathCurve, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	pathBeginRaw, err := r.U16()
	if err != nil {
		return world.ShapeParams{}, err
	}
	pathEndRaw, err := r.U16()
	if err != nil {
		return world.ShapeParams{}, err
	}
	scaleX, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	scaleY, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	shearX, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	shearY, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	profileCurve, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	profileBeginRaw, err := r.U16()
	if err != nil {
		return world.ShapeParams{}, err
	}
	profileEndRaw, err := r.U16()
	if err != nil {
		return world.ShapeParams{}, err
	}
	profileHollowRaw, err := r.U16()
	if err != nil {
		return world.ShapeParams{}, err
	}
	twist, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	twistBegin, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	taperX, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	taperY, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	revolutions, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}
	skew, err := r.U8()
	if err != nil {
		return world.ShapeParams{}, err
	}

	return world.ShapeParams{
		PathCurve:     pathCurve,
		ProfileCurve:  profileCurve,
		PathBegin:     float32(pathBeginRaw) / 50000.0,
		PathEnd:       1 - float32(pathEndRaw)/50000.0,
		Scale:         scaleVec(scaleX, scaleY),
		Shear:         shearVec(shearX, shearY),
		Twist:         signedU8(twist) * 180.0,
		TwistBegin:    signedU8(twistBegin) * 180.0,
		Taper:         taperVec(taperX, taperY),
		Revolutions:   1.0 + float32(revolutions)/66.66667,
		Skew:          signedU8(skew),
		ProfileBegin:  float32(profileBeginRaw) / 50000.0,
		ProfileEnd:    1 - float32(profileEndRaw)/50000.0,
		ProfileHollow: float32(profileHollowRaw) / 50000.0,
	}, nil
}

func signedU8(v uint8) float32 {
	return (float32(v) - 128.0) / 128.0
}

func scaleVec(x, y uint8) llmath.Vector3 {
	return llmath.Vector3{X: 1.0 - float32(x)/100.0, Y: 1.0 - float32(y)/100.0}
}

func shearVec(x, y uint8) llmath.Vector3 {
	return llmath.Vector3{X: signedU8(x) * 0.5, Y: signedU8(y) * 0.5}
}

func taperVec(x, y uint8) llmath.Vector3 {
	return llmath.Vector3{X: signedU8(x), Y: signedU8(y)}
}
