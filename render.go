// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gsplat

import (
	"github.com/gogpu/gsplat/internal/gpudispatch"
	"github.com/gogpu/gsplat/internal/raster"
)

// Output is the rasterizer's forward result (spec §3, "Outputs").
type Output struct {
	Width, Height int
	// Img holds H*W*4 float32 RGBA channels, or is nil when RenderU32 was
	// requested.
	Img []float32
	// Packed holds H*W packed uint32 RGBA values, non-nil only when
	// RenderU32 was requested. Not differentiable.
	Packed []uint32
}

// Checkpoint opaquely retains everything Backward needs from a Render
// call (spec §3 "Lifecycle", §9 "Checkpointing vs. recomputation").
type Checkpoint struct {
	inner raster.Checkpoint
	fwd   raster.Output
}

// Render runs the forward pipeline for one frame (spec §2, §4.1-§4.7):
// projection, depth sort, tile-hit prefix sum, intersection emission, tile
// sort, bin edges, and forward rasterization.
//
// Render prefers the GPU dispatch path in internal/gpudispatch, matching
// the teacher's HybridPipeline GPU-then-CPU-fallback pattern; it falls
// back to the pure-Go internal/raster pipeline when opts.UseCPUFallback
// is set or no GPU adapter is registered, logging the fallback at Warn
// (see logger.go).
func Render(cam Camera, in GaussianInput, opts RenderOptions) (Output, Checkpoint, error) {
	if err := in.validate(); err != nil {
		return Output{}, Checkpoint{}, err
	}

	rcam := cam.toRasterCamera()
	rin := in.toRasterInput()
	cfg := opts.toRasterConfig()

	if !opts.UseCPUFallback {
		if out, ckpt, ok := gpudispatch.TryRender(gpudispatch.DefaultAdapter(), rcam, rin, cfg); ok {
			return toPublicOutput(out), Checkpoint{inner: ckpt, fwd: out}, nil
		}
		Logger().Warn("gpu dispatch unavailable, using CPU fallback pipeline")
	}

	out, ckpt := raster.Render(rcam, rin, cfg)
	return toPublicOutput(out), Checkpoint{inner: ckpt, fwd: out}, nil
}

func toPublicOutput(out raster.Output) Output {
	return Output{Width: out.Width, Height: out.Height, Img: out.Img, Packed: out.Packed}
}
