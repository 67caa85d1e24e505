package llmath

import "testing"

func TestRegionHandleRoundTrip(t *testing.T) {
	for x := uint32(0); x < 4; x++ {
		for y := uint32(0); y < 4; y++ {
			handle := RegionHandle(x*DefaultRegionWidth, y*DefaultRegionWidth)
			gotX, gotY := SplitRegionHandle(handle)
			if gotX != x*DefaultRegionWidth || gotY != y*DefaultRegionWidth {
				t.Fatalf("SplitRegionHandle(RegionHandle(%d,%d)) = (%d,%d)", x, y, gotX, gotY)
			}
		}
	}
}

func TestRegionHandleFromGrid(t *testing.T) {
	got := RegionHandleFromGrid(1, 2)
	want := RegionHandle(256, 512)
	if got != want {
		t.Errorf("RegionHandleFromGrid(1,2) = %d, want %d", got, want)
	}
}

func TestQuaternionFromXYZReconstructsW(t *testing.T) {
	q := QuaternionFromXYZ(0, 0, 0)
	if q.W != 1 {
		t.Errorf("W = %f, want 1", q.W)
	}
}

func TestQuaternionNormalizeDegenerate(t *testing.T) {
	q := Quaternion{}.Normalize()
	if q != IdentityQuaternion {
		t.Errorf("Normalize() of zero quaternion = %+v, want identity", q)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 {
		t.Error("in-range value changed")
	}
	if Clamp(-5, 0, 10) != 0 {
		t.Error("below-range not clamped to lo")
	}
	if Clamp(50, 0, 10) != 10 {
		t.Error("above-range not clamped to hi")
	}
}
