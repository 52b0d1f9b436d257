package tile

import (
	"math"
	"math/rand"
	"testing"
)

func TestBF16RoundTripExact(t *testing.T) {
	// values with <=8 mantissa bits survive the round trip exactly
	exact := []float32{0, 1, -1, 0.5, -2.5, 256, -0.015625, 3.140625}
	for _, v := range exact {
		if got := BF16ToFloat32(Float32ToBF16(v)); got != v {
			t.Errorf("bf16 round trip of %v: got %v", v, got)
		}
	}
}

func TestBF16Rounding(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		v := (rng.Float32()*2 - 1) * 100
		if v == 0 {
			continue
		}
		got := BF16ToFloat32(Float32ToBF16(v))
		relErr := math.Abs(float64(got-v)) / math.Abs(float64(v))
		if relErr > 1.0/256 {
			t.Fatalf("bf16 relative error too large for %v: got %v (err %v)", v, got, relErr)
		}
	}
}

func TestBF16NaN(t *testing.T) {
	nan := float32(math.NaN())
	got := BF16ToFloat32(Float32ToBF16(nan))
	if !math.IsNaN(float64(got)) {
		t.Errorf("expected NaN to survive conversion, got %v", got)
	}
}

func TestBFP8BlockAccuracy(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 100; trial++ {
		src := make([]float32, BFP8BlockElems)
		maxAbs := 0.0
		for i := range src {
			src[i] = rng.Float32()*2 - 1
			if a := math.Abs(float64(src[i])); a > maxAbs {
				maxAbs = a
			}
		}

		enc, err := Quantize(BFP8, src)
		if err != nil {
			t.Fatalf("Quantize failed: %v", err)
		}
		if len(enc) != 1+BFP8BlockElems {
			t.Fatalf("unexpected encoded size %d", len(enc))
		}
		dec, err := Dequantize(BFP8, enc, BFP8BlockElems)
		if err != nil {
			t.Fatalf("Dequantize failed: %v", err)
		}

		// quantization step is bounded by the block max
		tol := maxAbs / 64
		for i := range src {
			if diff := math.Abs(float64(dec[i] - src[i])); diff > tol {
				t.Fatalf("block element %d: %v -> %v, err %v > %v", i, src[i], dec[i], diff, tol)
			}
			if src[i] != 0 && math.Signbit(float64(src[i])) != math.Signbit(float64(dec[i])) && dec[i] != 0 {
				t.Fatalf("sign flipped for %v -> %v", src[i], dec[i])
			}
		}
	}
}

func TestBFP8ZeroBlock(t *testing.T) {
	src := make([]float32, BFP8BlockElems)
	enc, err := Quantize(BFP8, src)
	if err != nil {
		t.Fatalf("Quantize failed: %v", err)
	}
	dec, err := Dequantize(BFP8, enc, BFP8BlockElems)
	if err != nil {
		t.Fatalf("Dequantize failed: %v", err)
	}
	for i, v := range dec {
		if v != 0 {
			t.Errorf("element %d of zero block decoded to %v", i, v)
		}
	}
}

func TestBFP8RequiresBlockMultiple(t *testing.T) {
	if _, err := Quantize(BFP8, make([]float32, 10)); err == nil {
		t.Error("expected error for non block multiple element count")
	}
}

func TestFootprint(t *testing.T) {
	tests := []struct {
		dtype DType
		n     int
		want  int
	}{
		{Float32, Elems, 4096},
		{BFloat16, Elems, 2048},
		{BFP8, Elems, 1024 + 64},
		{BFP8, BFP8BlockElems, 17},
	}
	for _, tc := range tests {
		if got := tc.dtype.Footprint(tc.n); got != tc.want {
			t.Errorf("%s footprint of %d elements: got %d, want %d", tc.dtype, tc.n, got, tc.want)
		}
	}
}

func TestByteOffsetAlignment(t *testing.T) {
	if got := BFP8.ByteOffset(32); got != 2*(1+BFP8BlockElems) {
		t.Errorf("BFP8 offset of element 32: got %d", got)
	}
	if got := BFloat16.ByteOffset(10); got != 20 {
		t.Errorf("BFloat16 offset of element 10: got %d", got)
	}
}

func TestRoundThrough(t *testing.T) {
	vals := []float32{1.0001, -2.7182818, 3.1415926, 0}
	orig := append([]float32(nil), vals...)

	f32 := append([]float32(nil), vals...)
	RoundThrough(Float32, f32)
	for i := range f32 {
		if f32[i] != orig[i] {
			t.Errorf("Float32 RoundThrough changed %v to %v", orig[i], f32[i])
		}
	}

	bf := append([]float32(nil), vals...)
	RoundThrough(BFloat16, bf)
	for i := range bf {
		want := BF16ToFloat32(Float32ToBF16(orig[i]))
		if bf[i] != want {
			t.Errorf("BFloat16 RoundThrough of %v: got %v, want %v", orig[i], bf[i], want)
		}
	}
}
