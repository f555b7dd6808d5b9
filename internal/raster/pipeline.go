// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Pipeline orchestrates the 9 stages of spec §2 into the CPU reference
// render path, the same sequential wiring internal/gpu dispatches as WGSL
// (spec §5, "Control flow is strictly sequential across stages").

package raster

import (
	"log/slog"

	"github.com/gogpu/gsplat/internal/logging"
)

// Render runs the forward pipeline (spec §4.1-§4.7) and returns the image
// plus a Checkpoint sufficient for Backward (spec §3 "Lifecycle", §6
// "Autodiff contract"). Validate must be called by the caller first; this
// function assumes in.Validate() == nil.
func Render(cam Camera, in GaussianInput, cfg Config) (Output, Checkpoint) {
	log := logging.Get()

	shK := len(in.SHCoeffs[0])

	st := ProjectForward(cam, in, cfg)
	log.Debug("projection forward", "num_visible", st.NumVisible, "n", in.N())

	compactFromDepthsortGID := DepthSort(st)
	numTilesHitSorted, cumTilesHit := TileHitPrefixSum(st, compactFromDepthsortGID)

	tilesX, tilesY := cam.TileBounds(cfg.TileWidth)
	numTiles := tilesX * tilesY
	mCap := MActual(cumTilesHit)
	if cap := in.N() * numTiles; cap < mCap {
		mCap = cap
	}
	if mCap > MaxIntersectsPerTileBudget {
		mCap = MaxIntersectsPerTileBudget
	}
	if mCap <= 0 {
		mCap = 1
	}

	isects := EmitIntersections(st, cam, cfg, compactFromDepthsortGID, numTilesHitSorted, cumTilesHit, mCap)
	log.Debug("intersection emission", "m_actual", isects.MActual, "m_cap", isects.MCap)

	isects = TileSort(isects, numTiles)

	bins := ComputeBinEdges(isects, tilesX, tilesY)

	out := RasterizeForward(cam, cfg, st, isects, bins)

	// sh_coeffs values are not needed by backward (sh.go's
	// evalSHBasisVJP is direction-only), so they are not retained in the
	// checkpoint; only the row width survives, in SHK.
	retained := in
	retained.SHCoeffs = make([][]float32, in.N())

	ckpt := Checkpoint{
		Camera:     cam,
		Config:     cfg,
		Input:      retained,
		SHK:        shK,
		Projected:  st,
		Isects:     isects,
		Bins:       bins,
		FinalIndex: out.FinalIndex,
	}
	return out, ckpt
}

// Backward runs the backward pipeline (spec §4.8-§4.9) given a forward
// checkpoint, the forward output (for out_alpha/final_index), and the
// incoming image-space gradient dL/d(out_img). Returns an error if ckpt
// was produced with packed u32 output (spec §4.7, "not differentiable in
// this mode").
func Backward(ckpt Checkpoint, fwd Output, vOutImg []float32) (Gradients, BackwardAux, error) {
	if ckpt.Config.RenderU32 {
		return Gradients{}, BackwardAux{}, ErrNotDifferentiable
	}

	st := ckpt.Projected
	isects := ckpt.Isects
	compactFromDepthsortGID := isects.CompactFromDepthsortGID
	numTilesHitSorted, cumTilesHit := TileHitPrefixSum(st, compactFromDepthsortGID)

	vXYScatter, vConicScatter, vColorsScatter, aux := RasterizeBackward(ckpt.Camera, ckpt.Config, st, isects, ckpt.Bins, fwd, vOutImg)

	degree, _ := SHDegreeFromCoeffCount(ckpt.SHK / 3)
	grad := ProjectBackward(ckpt.Camera, ckpt.Input, degree, st, compactFromDepthsortGID, numTilesHitSorted, cumTilesHit, vXYScatter, vConicScatter, vColorsScatter)

	logging.Get().Debug("projection backward", "num_visible", st.NumVisible)
	return grad, aux, nil
}

// logTruncation logs intersection-stream truncation at Warn (spec §7,
// "Intersection overflow"; spec §9 open question c).
func logTruncation(mActual, mCap int) {
	logging.Get().Warn("intersection stream truncated", slog.Int("m_actual", mActual), slog.Int("m_cap", mCap))
}
