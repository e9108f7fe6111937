package encoding

import "testing"

func TestKindRuns_RoundTrip(t *testing.T) {
	in := make([]int, 0, 200)
	in = append(in, 1, 1, 1, 0, 0, 1)
	for i := 0; i < 120; i++ {
		in = append(in, 0)
	}
	in = append(in, 1, 0, 0, 1)

	enc := EncodeKindRuns(in)
	out, err := DecodeKindRuns(enc)
	if err != nil {
		t.Fatalf("DecodeKindRuns: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestKindRuns_Empty(t *testing.T) {
	out, err := DecodeKindRuns(EncodeKindRuns(nil))
	if err != nil {
		t.Fatalf("DecodeKindRuns: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty, got %v", out)
	}
}

func TestKindRuns_RejectsGarbage(t *testing.T) {
	if _, err := DecodeKindRuns("not base64!!!"); err == nil {
		t.Fatalf("expected error for bad base64")
	}
}

func TestKindRuns_KindBounds(t *testing.T) {
	out, err := DecodeKindRuns(EncodeKindRuns([]int{0xFFFF}))
	if err != nil {
		t.Fatalf("max kind rejected: %v", err)
	}
	if len(out) != 1 || out[0] != 0xFFFF {
		t.Fatalf("got %v", out)
	}
	if _, err := DecodeKindRuns(EncodeKindRuns([]int{0x10000})); err == nil {
		t.Fatalf("kind beyond 16 bits accepted")
	}
}
