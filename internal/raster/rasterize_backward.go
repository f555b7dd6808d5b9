// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Rasterize backward (spec §4.8): per-pixel back-to-front gradient replay,
// scattering dL/d(xy, conic, color) into per-intersection buffers.

package raster

import "math"

// RasterizeBackward implements spec §4.8. fwd is the forward Output
// (providing out_alpha and final_index); vOutImg is dL/d(out_img), laid
// out H*W*4 like fwd.Img. Returns per-intersection gradient scatter
// buffers (length isects.MCap, zero outside the touched range) and the
// hit-count diagnostic buffer (original_source supplement 4), indexed by
// depthsort_gid, length st.NumVisible.
func RasterizeBackward(cam Camera, cfg Config, st ProjectedState, isects Intersections, bins TileBins, fwd Output, vOutImg []float32) (vXYScatter []Vec2, vConicScatter []Vec4, vColorsScatter []Vec4, aux BackwardAux) {
	vXYScatter = make([]Vec2, isects.MCap)
	vConicScatter = make([]Vec4, isects.MCap)
	vColorsScatter = make([]Vec4, isects.MCap)
	aux.HitIDs = make([]uint32, st.NumVisible)

	tile := cfg.TileWidth
	bg := cfg.Background

	// Every pixel in a tile shares the same intersection range, so the
	// scatter writes below must accumulate (+=) rather than assign: a
	// primitive spanning several pixels of a tile gets a gradient
	// contribution from each of them. This rules out splitting the pixel
	// loop across goroutines without per-intersection synchronization,
	// so rasterize backward (unlike forward) stays single-threaded.
	for py := 0; py < cam.Height; py++ {
		ty := py / tile
		for px := 0; px < cam.Width; px++ {
			tx := px / tile
			bin := bins.Index(tx, ty)
			start, end := int(bins.Start[bin]), int(bins.End[bin])
			if start >= end {
				continue
			}
			pixel := py*cam.Width + px
			finalIdx := int(fwd.FinalIndex[pixel])

			loopEnd := finalIdx
			if finalIdx >= end {
				loopEnd = end - 1
			}
			if loopEnd < start {
				continue
			}

			outAlpha := fwd.Img[pixel*4+3]
			T := 1 - outAlpha
			gR := vOutImg[pixel*4+0]
			gG := vOutImg[pixel*4+1]
			gB := vOutImg[pixel*4+2]

			pxf := float32(px) + 0.5
			pyf := float32(py) + 0.5

			R := Vec3{bg[0], bg[1], bg[2]}
			var lastAlpha float32
			var lastColor Vec3

			for i := loopEnd; i >= start; i-- {
				cid := compactGIDForIsect(isects, uint32(i))
				dx := pxf - st.XYs[cid][0]
				dy := pyf - st.XYs[cid][1]
				conic := st.ConicComps[cid]
				power := -0.5 * (conic[0]*dx*dx + 2*conic[1]*dx*dy + conic[2]*dy*dy)
				if power > 0 {
					continue
				}
				opacity := st.Colors[cid][3]
				expPower := float32(math.Exp(float64(power)))
				alphaPreClamp := opacity * expPower * conic[3]
				alpha := Clamp(alphaPreClamp, 0, alphaClampMax)
				if alpha < alphaClampMin {
					continue
				}

				T = T / (1 - alpha)

				color := Vec3{st.Colors[cid][0], st.Colors[cid][1], st.Colors[cid][2]}

				R = Vec3{
					lastAlpha*lastColor[0] + (1-lastAlpha)*R[0],
					lastAlpha*lastColor[1] + (1-lastAlpha)*R[1],
					lastAlpha*lastColor[2] + (1-lastAlpha)*R[2],
				}

				dLdAlpha := T * (gR*(color[0]-R[0]) + gG*(color[1]-R[1]) + gB*(color[2]-R[2]))

				// alpha = opacity*exp(power)*compensation, so dL/dopacity
				// (pre-sigmoid channel) is dLdAlpha*exp(power)*compensation;
				// SigmoidGrad is applied once this is reduced per-primitive
				// in project_backward.go. Every pixel the tile's bin
				// touches contributes to the same intersection slot, so
				// this accumulates rather than overwrites.
				vColorsScatter[i][0] += T * alpha * gR
				vColorsScatter[i][1] += T * alpha * gG
				vColorsScatter[i][2] += T * alpha * gB
				vColorsScatter[i][3] += dLdAlpha * expPower * conic[3]

				lastAlpha = alpha
				lastColor = color

				// Chain through alpha = clamp(opacity*exp(power)*compensation, 0,
				// 0.999); as in standard practice, ignore the clamp's
				// subgradient at its boundaries.
				dAlphadPower := alphaPreClamp
				dPowerdDx := -(conic[0]*dx + conic[1]*dy)
				dPowerdDy := -(conic[1]*dx + conic[2]*dy)
				dLdPower := dLdAlpha * dAlphadPower
				dLdDx := dLdPower * dPowerdDx
				dLdDy := dLdPower * dPowerdDy

				// Delta = pixel - xy, so dDelta/dxy == -1.
				vXYScatter[i][0] += -dLdDx
				vXYScatter[i][1] += -dLdDy

				vConicScatter[i][0] += dLdPower * (-0.5 * dx * dx)
				vConicScatter[i][1] += dLdPower * (-dx * dy)
				vConicScatter[i][2] += dLdPower * (-0.5 * dy * dy)
				vConicScatter[i][3] += dLdAlpha * opacity * expPower

				depthsortGID := isects.DepthsortGIDFromIsect[i]
				aux.HitIDs[depthsortGID]++
			}
		}
	}
	return vXYScatter, vConicScatter, vColorsScatter, aux
}
