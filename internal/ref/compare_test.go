package ref

import (
	"math"
	"testing"

	"github.com/23skdu/longbow-bodkin/internal/tile"
)

func TestSoftmaxRowsSumToOne(t *testing.T) {
	s := tile.Shape{N: 1, C: 1, H: 2, W: 4}
	x := []float32{1, 2, 3, 4, -1, 0, 1, 2}
	out := Softmax(x, s)
	for row := 0; row < 2; row++ {
		sum := 0.0
		for i := 0; i < 4; i++ {
			sum += float64(out[row*4+i])
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("row %d sums to %v", row, sum)
		}
	}
	// monotone inputs give monotone probabilities
	for i := 1; i < 4; i++ {
		if out[i] <= out[i-1] {
			t.Errorf("expected increasing probabilities, got %v", out[:4])
		}
	}
}

func TestScaleMaskSoftmaxKnownValues(t *testing.T) {
	s := tile.Shape{N: 1, C: 1, H: 2, W: 2}
	x := []float32{1, 1, 2, 2}
	maskShape := tile.Shape{N: 1, C: 1, H: 1, W: 2}
	mask := []float32{0, -4.2}

	out := ScaleMaskSoftmax(x, s, 2.0, mask, maskShape)

	// row 0: softmax(2, 2-4.2); masked element gets e^-4.2 odds
	want0 := 1 / (1 + math.Exp(-4.2))
	if math.Abs(float64(out[0])-want0) > 1e-6 {
		t.Errorf("masked softmax: got %v, want %v", out[0], want0)
	}
	// both rows see the same (scaled, masked) relative offsets
	if math.Abs(float64(out[0]-out[2])) > 1e-6 || math.Abs(float64(out[1]-out[3])) > 1e-6 {
		t.Errorf("mask broadcast across H differs: %v", out)
	}
}

func TestIsClose(t *testing.T) {
	got := []float32{1.0, 2.0, 3.0}
	want := []float32{1.01, 2.05, 3.0}

	if r := IsClose(got, want, 5e-2, 5e-2); !r.Pass() {
		t.Errorf("expected pass within 5e-2, got %s", r)
	}
	if r := IsClose(got, want, 1e-3, 1e-3); r.Pass() {
		t.Error("expected failure at 1e-3 tolerance")
	}

	r := IsClose([]float32{1, 10}, []float32{1, 20}, 1e-3, 1e-3)
	if r.Mismatches != 1 || r.MaxAbsDiff != 10 || r.ArgMax != 1 {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestIsCloseNaN(t *testing.T) {
	got := []float32{float32(math.NaN())}
	want := []float32{1.0}
	if r := IsClose(got, want, 1, 1000); r.Pass() {
		t.Error("NaN must never pass")
	}
}

func TestPCC(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	if pcc := PCC(a, a); math.Abs(pcc-1) > 1e-12 {
		t.Errorf("self PCC: got %v", pcc)
	}
	b := []float32{4, 3, 2, 1}
	if pcc := PCC(a, b); math.Abs(pcc+1) > 1e-12 {
		t.Errorf("anti-correlated PCC: got %v", pcc)
	}
	if pcc := PCC(a, []float32{1, 2}); pcc != 0 {
		t.Errorf("length mismatch PCC: got %v", pcc)
	}
}

func TestAttentionScenarioDeterminism(t *testing.T) {
	s := tile.Shape{N: 2, C: 1, H: 64, W: 64}
	a := AttentionScenario(s, -4.2, 123)
	b := AttentionScenario(s, -4.2, 123)

	if a.Scale != b.Scale {
		t.Errorf("scale differs across runs: %v vs %v", a.Scale, b.Scale)
	}
	for i := range a.Input {
		if a.Input[i] != b.Input[i] {
			t.Fatalf("input differs at %d", i)
		}
	}
	if a.Scale < 0.5 || a.Scale >= 1.5 {
		t.Errorf("scale out of range: %v", a.Scale)
	}
	for i, v := range a.Input {
		if v < -1 || v >= 1 {
			t.Fatalf("input %d out of range: %v", i, v)
		}
	}
	// mask alternates 0, offs per plane row
	for p := 0; p < 2; p++ {
		for w := 0; w < 64; w++ {
			want := float32(0)
			if w%2 == 1 {
				want = -4.2
			}
			if a.Mask[p*64+w] != want {
				t.Fatalf("mask at (%d,%d): got %v, want %v", p, w, a.Mask[p*64+w], want)
			}
		}
	}
}
