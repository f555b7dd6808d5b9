// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpudispatch wires the Gaussian splat pipeline (spec §4.1-§4.9)
// onto a internal/gpucore.GPUAdapter, the same backend-agnostic interface
// the teacher's top-level gpucore.HybridPipeline uses for its 2D
// flatten/coarse/fine pipeline.
//
// DefaultAdapter opens a standalone gogpu/wgpu/hal Vulkan device (see
// device.go) and Pipeline builds a real bind group layout, pipeline
// layout, and compute pipeline for every kernel under shaders/ (see
// kernelbindings.go). TryRender dispatches project_forward end to end —
// buffer creation, upload, compute pass, submit, and readback — but every
// kernel past it (depth sort, tile-hit prefix sum, intersection emission,
// tile sort, bin edges) has no WGSL yet, and ReadBuffer cannot map bytes
// back out of gogpu/wgpu/hal today, so a dispatch always resolves to the
// internal/raster CPU fallback. That fallback is Render's (in the gsplat
// root package) ordinary, logged behavior, not an error path.
package gpudispatch
