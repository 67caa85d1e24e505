package throttle

import (
	"math"
	"testing"
)

func TestSetTotalDistributesByRatio(t *testing.T) {
	r := SetTotal(500000)
	// None of these fall outside their clamp range at this total, so the
	// ratios should be exact.
	want := map[Channel]float32{
		Resend:  50000,
		Wind:    25000,
		Cloud:   25000,
		Texture: 117500,
	}
	for ch, w := range want {
		if math.Abs(float64(r[ch]-w)) > 1 {
			t.Errorf("channel %s = %v, want ~%v", ch, r[ch], w)
		}
	}
}

func TestSetTotalClampsLowEnd(t *testing.T) {
	r := SetTotal(1) // tiny total, every channel with a non-zero floor clamps to it
	if r[Resend] != clamps[Resend].min {
		t.Errorf("Resend = %v, want floor %v", r[Resend], clamps[Resend].min)
	}
	if r[Task] != clamps[Task].min {
		t.Errorf("Task = %v, want floor %v", r[Task], clamps[Task].min)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := SetTotal(300000)
	buf := Encode(r)
	if len(buf) != 28 {
		t.Fatalf("Encode length = %d, want 28", len(buf))
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got != r.Clamp() {
		t.Errorf("Decode(Encode(r)) = %v, want %v", got, r.Clamp())
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	if err == nil {
		t.Fatal("expected error for truncated throttle block")
	}
}

func TestClampEnforcesRange(t *testing.T) {
	over := Rates{Resend: 999999999, Land: -5}
	c := over.Clamp()
	if c[Resend] != clamps[Resend].max {
		t.Errorf("Resend = %v, want ceiling %v", c[Resend], clamps[Resend].max)
	}
	if c[Land] != clamps[Land].min {
		t.Errorf("Land = %v, want floor %v", c[Land], clamps[Land].min)
	}
}
