package tile

// Tilize permutes a dense row-major [N,C,H,W] buffer into tiled storage
// order: 32x32 tiles, tiles row-major over the (H/32, W/32) grid, repeated
// plane by plane over N*C. It is a pure permutation; no values change.
func Tilize(dense []float32, s Shape) ([]float32, error) {
	if err := s.CheckTiled(); err != nil {
		return nil, err
	}
	if len(dense) != s.NumElements() {
		return nil, &ShapeError{Shape: s, Reason: "buffer length does not match shape"}
	}

	tilesH := s.H / Dim
	tilesW := s.W / Dim
	planeSize := s.H * s.W
	out := make([]float32, len(dense))

	dst := 0
	for plane := 0; plane < s.N*s.C; plane++ {
		base := plane * planeSize
		for th := 0; th < tilesH; th++ {
			for tw := 0; tw < tilesW; tw++ {
				for r := 0; r < Dim; r++ {
					src := base + (th*Dim+r)*s.W + tw*Dim
					copy(out[dst:dst+Dim], dense[src:src+Dim])
					dst += Dim
				}
			}
		}
	}
	return out, nil
}

// Untilize is the inverse of Tilize: Untilize(Tilize(x)) == x exactly.
func Untilize(tiled []float32, s Shape) ([]float32, error) {
	if err := s.CheckTiled(); err != nil {
		return nil, err
	}
	if len(tiled) != s.NumElements() {
		return nil, &ShapeError{Shape: s, Reason: "buffer length does not match shape"}
	}

	tilesH := s.H / Dim
	tilesW := s.W / Dim
	planeSize := s.H * s.W
	out := make([]float32, len(tiled))

	src := 0
	for plane := 0; plane < s.N*s.C; plane++ {
		base := plane * planeSize
		for th := 0; th < tilesH; th++ {
			for tw := 0; tw < tilesW; tw++ {
				for r := 0; r < Dim; r++ {
					dst := base + (th*Dim+r)*s.W + tw*Dim
					copy(out[dst:dst+Dim], tiled[src:src+Dim])
					src += Dim
				}
			}
		}
	}
	return out, nil
}
