package objectupdate

import (
	"encoding/binary"
	"math"
	"testing"
)

func encodeF32(v float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return b[:]
}

func buildKinematics60(pos, vel, acc, rotXYZ, angVel [3]float32) []byte {
	var out []byte
	for _, v := range pos {
		out = append(out, encodeF32(v)...)
	}
	for _, v := range vel {
		out = append(out, encodeF32(v)...)
	}
	for _, v := range acc {
		out = append(out, encodeF32(v)...)
	}
	for _, v := range rotXYZ {
		out = append(out, encodeF32(v)...)
	}
	for _, v := range angVel {
		out = append(out, encodeF32(v)...)
	}
	return out
}

// TestObjectDataVariantSelection mirrors the spec scenario: a 60-byte
// blob decodes as a primitive at Position=(1,2,3), Velocity=(0,0,0);
// a 76-byte blob with the same trailing 60 bytes decodes as an avatar
// whose collision plane equals the leading 16 bytes as a 4-vector.
func TestObjectDataVariantSelection(t *testing.T) {
	body := buildKinematics60([3]float32{1, 2, 3}, [3]float32{0, 0, 0}, [3]float32{0, 0, 0}, [3]float32{0, 0, 0}, [3]float32{0, 0, 0})

	prim, err := unpackObjectData(body)
	if err != nil {
		t.Fatalf("unpackObjectData(60) error: %v", err)
	}
	if prim.IsAvatar {
		t.Error("60-byte blob should decode as a primitive")
	}
	if prim.Motion.Position.X != 1 || prim.Motion.Position.Y != 2 || prim.Motion.Position.Z != 3 {
		t.Errorf("Position = %+v, want (1,2,3)", prim.Motion.Position)
	}
	if !prim.Motion.Velocity.IsZero() {
		t.Errorf("Velocity = %+v, want zero", prim.Motion.Velocity)
	}

	cpBytes := append(encodeF32(10), append(encodeF32(20), append(encodeF32(30), encodeF32(40)...)...)...)
	blob76 := append(append([]byte{}, cpBytes...), body...)

	av, err := unpackObjectData(blob76)
	if err != nil {
		t.Fatalf("unpackObjectData(76) error: %v", err)
	}
	if !av.IsAvatar {
		t.Error("76-byte blob should decode as an avatar")
	}
	want := [4]float32{10, 20, 30, 40}
	got := [4]float32{av.CollisionPlane.X, av.CollisionPlane.Y, av.CollisionPlane.Z, av.CollisionPlane.W}
	if got != want {
		t.Errorf("CollisionPlane = %v, want %v", got, want)
	}
	if av.Motion.Position.X != 1 {
		t.Errorf("avatar Position.X = %v, want 1", av.Motion.Position.X)
	}
}

func TestObjectDataUnsupportedLength(t *testing.T) {
	_, err := unpackObjectData(make([]byte, 17))
	if err == nil {
		t.Fatal("expected error for unsupported object-data length")
	}
}

func TestUnpackU16RoundTripsApproximately(t *testing.T) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], 65535)
	got := unpackU16(b[:], -256, 256)
	if got < 255.9 || got > 256.0001 {
		t.Errorf("unpackU16(max) = %v, want ~256", got)
	}

	binary.LittleEndian.PutUint16(b[:], 0)
	got = unpackU16(b[:], -256, 256)
	if got != -256 {
		t.Errorf("unpackU16(0) = %v, want -256", got)
	}
}
