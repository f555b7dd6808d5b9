// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpudispatch

import (
	"errors"
	"testing"

	"github.com/gogpu/gsplat/internal/gpucore"
	"github.com/gogpu/gsplat/internal/raster"
)

// mockAdapter is a gpucore.GPUAdapter that never touches a real GPU: every
// Create* call hands back a fresh incrementing ID and records it, so
// Pipeline.init's bind-group-layout/pipeline-layout/compute-pipeline
// wiring can be exercised without gogpu/wgpu/hal. ReadBuffer mirrors
// WGPUAdapter's real behavior by returning ErrBufferMappingUnsupported,
// the same limitation TryRender has to fall back on.
type mockAdapter struct {
	supportsCompute bool
	nextID          uint64

	failCreateBindGroupLayout bool
}

func (m *mockAdapter) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *mockAdapter) SupportsCompute() bool       { return m.supportsCompute }
func (m *mockAdapter) MaxWorkgroupSize() [3]uint32 { return [3]uint32{256, 256, 64} }
func (m *mockAdapter) MaxBufferSize() uint64       { return 1 << 30 }

func (m *mockAdapter) CreateShaderModule([]uint32, string) (gpucore.ShaderModuleID, error) {
	return gpucore.ShaderModuleID(m.id()), nil
}
func (m *mockAdapter) DestroyShaderModule(gpucore.ShaderModuleID) {}

func (m *mockAdapter) CreateBuffer(int, gpucore.BufferUsage) (gpucore.BufferID, error) {
	return gpucore.BufferID(m.id()), nil
}
func (m *mockAdapter) DestroyBuffer(gpucore.BufferID)               {}
func (m *mockAdapter) WriteBuffer(gpucore.BufferID, uint64, []byte) {}
func (m *mockAdapter) ReadBuffer(gpucore.BufferID, uint64, uint64) ([]byte, error) {
	return nil, ErrBufferMappingUnsupported
}

func (m *mockAdapter) CreateTexture(int, int, gpucore.TextureFormat) (gpucore.TextureID, error) {
	return gpucore.TextureID(m.id()), nil
}
func (m *mockAdapter) DestroyTexture(gpucore.TextureID)       {}
func (m *mockAdapter) WriteTexture(gpucore.TextureID, []byte) {}
func (m *mockAdapter) ReadTexture(gpucore.TextureID) ([]byte, error) {
	return nil, errors.New("mockAdapter: texture readback not supported")
}

func (m *mockAdapter) CreateBindGroupLayout(*gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if m.failCreateBindGroupLayout {
		return gpucore.InvalidID, errors.New("mockAdapter: forced bind group layout failure")
	}
	return gpucore.BindGroupLayoutID(m.id()), nil
}
func (m *mockAdapter) DestroyBindGroupLayout(gpucore.BindGroupLayoutID) {}

func (m *mockAdapter) CreatePipelineLayout([]gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	return gpucore.PipelineLayoutID(m.id()), nil
}
func (m *mockAdapter) DestroyPipelineLayout(gpucore.PipelineLayoutID) {}

func (m *mockAdapter) CreateComputePipeline(*gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	return gpucore.ComputePipelineID(m.id()), nil
}
func (m *mockAdapter) DestroyComputePipeline(gpucore.ComputePipelineID) {}

func (m *mockAdapter) CreateBindGroup(gpucore.BindGroupLayoutID, []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	return gpucore.BindGroupID(m.id()), nil
}
func (m *mockAdapter) DestroyBindGroup(gpucore.BindGroupID) {}

func (m *mockAdapter) BeginComputePass() gpucore.ComputePassEncoder { return mockComputePassEncoder{} }
func (m *mockAdapter) Submit()                                      {}
func (m *mockAdapter) WaitIdle()                                    {}

type mockComputePassEncoder struct{}

func (mockComputePassEncoder) SetPipeline(gpucore.ComputePipelineID)    {}
func (mockComputePassEncoder) SetBindGroup(uint32, gpucore.BindGroupID) {}
func (mockComputePassEncoder) Dispatch(uint32, uint32, uint32)          {}
func (mockComputePassEncoder) End()                                     {}

var _ gpucore.GPUAdapter = (*mockAdapter)(nil)

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	adapter := &mockAdapter{supportsCompute: true}
	if _, err := NewPipeline(nil, &PipelineConfig{Width: 64, Height: 64}); err == nil {
		t.Fatal("expected error for nil adapter")
	}
	if _, err := NewPipeline(adapter, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := NewPipeline(adapter, &PipelineConfig{Width: 0, Height: 64}); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestPipelineAvailableWithFullMockAdapter(t *testing.T) {
	adapter := &mockAdapter{supportsCompute: true}
	p, err := NewPipeline(adapter, &PipelineConfig{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	if !p.Available() {
		t.Fatal("expected Available() to be true once every kernel pipeline is built")
	}
}

func TestPipelineUnavailableWhenAdapterLacksCompute(t *testing.T) {
	adapter := &mockAdapter{supportsCompute: false}
	p, err := NewPipeline(adapter, &PipelineConfig{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	if p.Available() {
		t.Fatal("expected Available() to be false when adapter reports no compute support")
	}
}

func TestPipelineUnavailableWhenKernelWiringFails(t *testing.T) {
	adapter := &mockAdapter{supportsCompute: true, failCreateBindGroupLayout: true}
	p, err := NewPipeline(adapter, &PipelineConfig{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	if p.Available() {
		t.Fatal("expected Available() to be false when bind group layout creation fails")
	}
}

func TestPipelineUnavailableWithCPUFallbackForced(t *testing.T) {
	adapter := &mockAdapter{supportsCompute: true}
	p, err := NewPipeline(adapter, &PipelineConfig{Width: 64, Height: 64, UseCPUFallback: true})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	if p.Available() {
		t.Fatal("expected Available() to be false when UseCPUFallback is set")
	}
}

// TestDispatchProjectForwardFallsBackOnUnmappableReadback exercises the
// real dispatch path against the mock adapter and confirms it surfaces
// ErrBufferMappingUnsupported rather than fabricating a result, matching
// what WGPUAdapter.ReadBuffer actually does.
func TestDispatchProjectForwardFallsBackOnUnmappableReadback(t *testing.T) {
	adapter := &mockAdapter{supportsCompute: true}
	p, err := NewPipeline(adapter, &PipelineConfig{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	cam := raster.Camera{Width: 64, Height: 64, Focal: raster.Vec2{100, 100}}
	in := raster.GaussianInput{
		Means:        []raster.Vec3{{0, 0, 2}},
		LogScales:    []raster.Vec3{{0, 0, 0}},
		Quats:        []raster.Quat{{0, 0, 0, 1}},
		SHCoeffs:     [][]float32{{1, 1, 1}},
		RawOpacities: []float32{1},
	}
	cfg := raster.Config{ClipThresh: raster.DefaultClipThresh, TileWidth: raster.TileWidth}

	err = p.dispatchProjectForward(cam, in, cfg)
	if !errors.Is(err, ErrBufferMappingUnsupported) {
		t.Fatalf("dispatchProjectForward error = %v, want ErrBufferMappingUnsupported", err)
	}
}

func TestTryRenderFallsBackWhenAdapterIsNil(t *testing.T) {
	cam := raster.Camera{Width: 64, Height: 64}
	in := raster.GaussianInput{}
	cfg := raster.Config{}
	if _, _, ok := TryRender(nil, cam, in, cfg); ok {
		t.Fatal("expected TryRender to report ok=false with a nil adapter")
	}
}

func TestTryRenderFallsBackThroughRealDispatch(t *testing.T) {
	adapter := &mockAdapter{supportsCompute: true}
	cam := raster.Camera{Width: 64, Height: 64, Focal: raster.Vec2{100, 100}}
	in := raster.GaussianInput{
		Means:        []raster.Vec3{{0, 0, 2}},
		LogScales:    []raster.Vec3{{0, 0, 0}},
		Quats:        []raster.Quat{{0, 0, 0, 1}},
		SHCoeffs:     [][]float32{{1, 1, 1}},
		RawOpacities: []float32{1},
	}
	cfg := raster.Config{ClipThresh: raster.DefaultClipThresh, TileWidth: raster.TileWidth}

	_, _, ok := TryRender(adapter, cam, in, cfg)
	if ok {
		t.Fatal("expected TryRender to report ok=false until readback is implemented upstream")
	}
}
