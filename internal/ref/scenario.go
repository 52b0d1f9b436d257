package ref

import (
	"math/rand"

	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Scenario is one fused-softmax conformance case: an input tensor, a
// broadcast scale, and an additive attention mask.
type Scenario struct {
	Shape     tile.Shape
	Input     []float32
	Scale     float32
	Mask      []float32 // [N,C,1,W], broadcast over H
	MaskShape tile.Shape
}

// AttentionScenario builds the BERT-large attention-softmax case: random
// input in [-1,1), scale in [0.5,1.5), and a mask alternating {0, offs}
// across each plane's first row with zeros elsewhere.
func AttentionScenario(shape tile.Shape, offs float32, seed int64) Scenario {
	rng := rand.New(rand.NewSource(seed))

	input := make([]float32, shape.NumElements())
	for i := range input {
		input[i] = rng.Float32()*2 - 1
	}

	scale := 0.5 + rng.Float32()

	maskShape := tile.Shape{N: shape.N, C: shape.C, H: 1, W: shape.W}
	mask := make([]float32, maskShape.NumElements())
	for p := 0; p < shape.N*shape.C; p++ {
		for w := 0; w < shape.W; w++ {
			if w%2 == 1 {
				mask[p*shape.W+w] = offs
			}
		}
	}

	return Scenario{
		Shape:     shape,
		Input:     input,
		Scale:     scale,
		Mask:      mask,
		MaskShape: maskShape,
	}
}

// Expected computes the float64 reference output for the scenario.
func (sc Scenario) Expected() []float32 {
	return ScaleMaskSoftmax(sc.Input, sc.Shape, sc.Scale, sc.Mask, sc.MaskShape)
}
