// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Rasterize forward (spec §4.7): per-pixel front-to-back alpha compositing
// over each tile's bin of intersections.

package raster

import (
	"math"

	"github.com/gogpu/gsplat/internal/parallel"
)

const transmittanceCutoff = 1e-4
const alphaClampMax = 0.999
const alphaClampMin = 1.0 / 255.0

// parallelRowThreshold is the image height above which RasterizeForward
// splits work across internal/parallel.WorkerPool instead of running on
// a single goroutine; below it, pool setup overhead would dominate a
// frame this small.
const parallelRowThreshold = 64

// RasterizeForward implements spec §4.7. One conceptual "workgroup" per
// tile, one thread per pixel; the CPU reference parallelizes across pixel
// rows with internal/parallel.WorkerPool (each row only ever reads its
// own tile's bin and writes its own pixels, so no synchronization is
// needed between work items) and runs a plain per-pixel loop within each
// row, since there is no cooperative shared-memory batching to model.
func RasterizeForward(cam Camera, cfg Config, st ProjectedState, isects Intersections, bins TileBins) Output {
	out := Output{Width: cam.Width, Height: cam.Height}
	if cfg.RenderU32 {
		out.Packed = make([]uint32, cam.Width*cam.Height)
	} else {
		out.Img = make([]float32, cam.Width*cam.Height*4)
		out.FinalIndex = make([]uint32, cam.Width*cam.Height)
	}

	renderRow := func(py int) {
		tile := cfg.TileWidth
		ty := py / tile
		for px := 0; px < cam.Width; px++ {
			tx := px / tile
			bin := bins.Index(tx, ty)
			start, end := bins.Start[bin], bins.End[bin]

			rgb, transmittance, finalIdx := compositePixel(float32(px)+0.5, float32(py)+0.5, st, isects, start, end)

			pixel := py*cam.Width + px
			bg := cfg.Background
			rOut := rgb[0] + transmittance*bg[0]
			gOut := rgb[1] + transmittance*bg[1]
			bOut := rgb[2] + transmittance*bg[2]
			aOut := 1 - transmittance

			if cfg.RenderU32 {
				out.Packed[pixel] = pack4x8unorm(rOut, gOut, bOut, aOut)
			} else {
				out.Img[pixel*4+0] = rOut
				out.Img[pixel*4+1] = gOut
				out.Img[pixel*4+2] = bOut
				out.Img[pixel*4+3] = aOut
				out.FinalIndex[pixel] = finalIdx
			}
		}
	}

	if cam.Height < parallelRowThreshold {
		for py := 0; py < cam.Height; py++ {
			renderRow(py)
		}
		return out
	}

	pool := parallel.NewWorkerPool(0)
	defer pool.Close()
	work := make([]func(), cam.Height)
	for py := 0; py < cam.Height; py++ {
		py := py
		work[py] = func() { renderRow(py) }
	}
	pool.ExecuteAll(work)
	return out
}

// compactGIDForIsect resolves an intersection index to its compact_gid:
// depthsort_gid_from_isect[i] gives the depth-sorted id, which
// compact_from_depthsort_gid then maps to the compact id addressing
// ProjectedState (original_source: Rasterize binds both buffers).
func compactGIDForIsect(isects Intersections, i uint32) uint32 {
	return isects.CompactFromDepthsortGID[isects.DepthsortGIDFromIsect[i]]
}

// compositePixel runs the per-pixel alpha-compositing loop of spec §4.7
// over intersections [start,end), returning the accumulated (unweighted
// by background) color, the remaining transmittance, and the final
// intersection index (end if saturation was never reached).
func compositePixel(px, py float32, st ProjectedState, isects Intersections, start, end uint32) (rgb Vec3, transmittance float32, finalIdx uint32) {
	transmittance = 1
	finalIdx = end
	for i := start; i < end; i++ {
		cid := compactGIDForIsect(isects, i)
		dx := px - st.XYs[cid][0]
		dy := py - st.XYs[cid][1]
		conic := st.ConicComps[cid]
		power := -0.5 * (conic[0]*dx*dx + 2*conic[1]*dx*dy + conic[2]*dy*dy)
		if power > 0 {
			continue
		}
		alpha := Clamp(st.Colors[cid][3]*float32(math.Exp(float64(power)))*conic[3], 0, alphaClampMax)
		if alpha < alphaClampMin {
			continue
		}
		color := st.Colors[cid]
		rgb[0] += transmittance * alpha * color[0]
		rgb[1] += transmittance * alpha * color[1]
		rgb[2] += transmittance * alpha * color[2]
		transmittance *= 1 - alpha
		if transmittance < transmittanceCutoff {
			finalIdx = i
			return rgb, transmittance, finalIdx
		}
	}
	return rgb, transmittance, finalIdx
}

// pack4x8unorm matches WGSL's pack4x8unorm: round(clamp(c,0,1)*255) per
// channel, little-endian byte order r,g,b,a (spec §8 scenario 6).
func pack4x8unorm(r, g, b, a float32) uint32 {
	ri := uint32(math.Round(float64(Clamp(r, 0, 1)) * 255))
	gi := uint32(math.Round(float64(Clamp(g, 0, 1)) * 255))
	bi := uint32(math.Round(float64(Clamp(b, 0, 1)) * 255))
	ai := uint32(math.Round(float64(Clamp(a, 0, 1)) * 255))
	return ri | gi<<8 | bi<<16 | ai<<24
}
