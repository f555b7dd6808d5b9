// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpudispatch

import "github.com/gogpu/gsplat/internal/gpucore"

// kernelEntryPoints maps each kernel name to the @compute function it
// declares in shaders/*.wgsl.
var kernelEntryPoints = map[string]string{
	"project_forward":    "project_splats",
	"prefix_sum":         "tile_hit_prefix_sum",
	"rasterize_forward":  "rasterize",
	"rasterize_backward": "rasterize_backward",
	"project_backward":   "project_backward",
}

func u(binding uint32) gpucore.BindGroupLayoutEntry {
	return gpucore.BindGroupLayoutEntry{Binding: binding, Type: gpucore.BindingTypeUniformBuffer}
}
func ro(binding uint32) gpucore.BindGroupLayoutEntry {
	return gpucore.BindGroupLayoutEntry{Binding: binding, Type: gpucore.BindingTypeReadOnlyStorageBuffer}
}
func rw(binding uint32) gpucore.BindGroupLayoutEntry {
	return gpucore.BindGroupLayoutEntry{Binding: binding, Type: gpucore.BindingTypeStorageBuffer}
}

// kernelBindGroupLayouts declares the @group(0) bindings of each kernel in
// shaders/*.wgsl, binding index for binding index, so Pipeline.init can
// build a real gpucore.BindGroupLayoutDesc per kernel instead of leaving
// CreateBindGroupLayout/CreatePipelineLayout/CreateComputePipeline
// unreachable. Read-write storage bindings (including the ones WGSL
// declares `atomic<u32>`, which still bind as an ordinary storage buffer)
// use rw; read-only ones use ro.
var kernelBindGroupLayouts = map[string][]gpucore.BindGroupLayoutEntry{
	"project_forward": {
		u(0), ro(1), ro(2), rw(3), rw(4), rw(5), rw(6), rw(7), rw(8), rw(9), rw(10),
	},
	"prefix_sum": {
		ro(0), ro(1), u(2), rw(3), rw(4),
	},
	"rasterize_forward": {
		ro(0), ro(1), ro(2), ro(3), ro(4), ro(5), ro(6), ro(7), u(8), rw(9), rw(10), u(11),
	},
	"rasterize_backward": {
		ro(0), ro(1), ro(2), ro(3), ro(4), ro(5), ro(6), ro(7), ro(8), ro(9),
		rw(10), rw(11), rw(12), rw(13), u(14), u(15),
	},
	"project_backward": {
		u(0), ro(1), ro(2), ro(3), ro(4), ro(5), ro(6), ro(7), ro(8), u(9), u(10), rw(11), rw(12), rw(13),
	},
}
