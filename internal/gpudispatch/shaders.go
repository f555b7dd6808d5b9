// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpudispatch

import _ "embed"

// Each source mirrors one internal/raster stage kernel for kernel, the way
// the teacher's internal/gpu/tilecompute WGSL mirrors its own CPU paths.

//go:embed shaders/project_forward.wgsl
var projectForwardShaderSource string

//go:embed shaders/prefix_sum.wgsl
var prefixSumShaderSource string

//go:embed shaders/rasterize_forward.wgsl
var rasterizeForwardShaderSource string

//go:embed shaders/rasterize_backward.wgsl
var rasterizeBackwardShaderSource string

//go:embed shaders/project_backward.wgsl
var projectBackwardShaderSource string

// kernelSources maps a kernel name to its WGSL source, for
// CreateShaderModule calls once an adapter is registered (Phase 2).
var kernelSources = map[string]string{
	"project_forward":     projectForwardShaderSource,
	"prefix_sum":          prefixSumShaderSource,
	"rasterize_forward":   rasterizeForwardShaderSource,
	"rasterize_backward":  rasterizeBackwardShaderSource,
	"project_backward":    projectBackwardShaderSource,
}
