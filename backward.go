// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gsplat

import "github.com/gogpu/gsplat/internal/raster"

// Gradients are the per-primitive output of Backward (spec §4.9), one
// slot per original primitive index passed to Render, zero for any
// primitive invisible in that frame.
type Gradients struct {
	Means        []Vec3
	LogScales    []Vec3
	Quats        []Quat
	SHCoeffs     [][]float32
	RawOpacities []float32
	// XYs is v_xys, registered against the identity xy_dummy input rather
	// than against a real parameter (spec §6 autodiff contract).
	XYs [][2]float32
}

// BackwardAux exposes the non-differentiable per-primitive hit-count
// diagnostic produced alongside Backward's gradients (original_source
// supplement 4). Not part of the default gradient path.
type BackwardAux struct {
	HitCounts []uint32
}

// Backward replays the backward pass (spec §4.8-§4.9) against a
// checkpoint from a prior Render call, given dL/d(out_img) laid out
// H*W*4 like Output.Img. It returns ErrNotDifferentiable if ckpt was
// produced with RenderOptions.RenderU32 set.
func Backward(ckpt Checkpoint, vOutImg []float32) (Gradients, BackwardAux, error) {
	grad, aux, err := raster.Backward(ckpt.inner, ckpt.fwd, vOutImg)
	if err != nil {
		return Gradients{}, BackwardAux{}, err
	}
	return toPublicGradients(grad), BackwardAux{HitCounts: aux.HitIDs}, nil
}

func toPublicGradients(g raster.Gradients) Gradients {
	n := len(g.Means)
	out := Gradients{
		Means:        make([]Vec3, n),
		LogScales:    make([]Vec3, n),
		Quats:        make([]Quat, n),
		SHCoeffs:     g.SHCoeffs,
		RawOpacities: g.RawOpacities,
		XYs:          make([][2]float32, n),
	}
	for i := 0; i < n; i++ {
		out.Means[i] = Vec3{g.Means[i][0], g.Means[i][1], g.Means[i][2]}
		out.LogScales[i] = Vec3{g.LogScales[i][0], g.LogScales[i][1], g.LogScales[i][2]}
		out.Quats[i] = Quat{g.Quats[i][0], g.Quats[i][1], g.Quats[i][2], g.Quats[i][3]}
		out.XYs[i] = [2]float32{g.XYs[i][0], g.XYs[i][1]}
	}
	return out
}
