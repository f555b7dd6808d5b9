// Package gsplat implements the core rendering and differentiation engine
// of a 3D Gaussian Splatting system: a differentiable tile-based rasterizer
// that, given a camera and a set of anisotropic 3D Gaussian primitives,
// produces a 2D image and, on the backward pass, gradients of a scalar loss
// with respect to every per-Gaussian parameter.
//
// # Overview
//
// gsplat drives GPU compute through a portable shader runtime built on
// github.com/gogpu/wgpu and github.com/gogpu/naga. The pipeline has nine
// sequential stages -- projection, depth sort, tile-hit prefix sum,
// intersection emission, tile sort, bin edges, forward rasterize, backward
// rasterize, and projection backward -- described in SPEC_FULL.md.
//
// # Quick start
//
//	cam := gsplat.Camera{Width: 512, Height: 512, FovX: 0.8, FovY: 0.8}
//	in, err := gsplat.NewGaussianInput(means, logScales, quats, shCoeffs, rawOpacities)
//	out, ckpt, err := gsplat.Render(cam, in, gsplat.DefaultRenderOptions())
//	grads, err := gsplat.Backward(ckpt, vOutImg)
//
// # Scope
//
// Dataset ingestion, the optimization loop, splat lifecycle management
// (densification, pruning), and the desktop/web shell are explicitly out of
// scope -- gsplat treats them as external collaborators and only specifies
// the data exchanged with them.
//
// # Architecture
//
// The public API (Render, Backward, Camera, GaussianInput) wraps two
// implementations of the same nine stages:
//   - internal/raster: a pure-Go CPU reference pipeline, used when no GPU
//     adapter is available or RenderOptions.UseCPUFallback is set.
//   - internal/gpu: a gogpu/wgpu-backed dispatch path compiling the WGSL
//     sources under shaders/ via gogpu/naga.
//
// Both share the index-space invariants (compact id, depth-sorted id,
// intersection id) documented in SPEC_FULL.md and spec.md.
package gsplat
