// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpudispatch

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Registers the Vulkan backend with hal.GetBackend via init(), the same
	// way internal/gpu/vello_accelerator.go pulls it in for its standalone
	// compute-only path.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// openStandaloneDevice opens a compute-capable hal.Device/hal.Queue pair
// without an external device provider, grounded on
// VelloAccelerator.initGPU's standalone path: get the Vulkan backend,
// create an instance, enumerate adapters preferring a discrete or
// integrated GPU, and open it. Returns an error (never panics) when no
// Vulkan backend is registered or no adapter is found, which is the
// expected outcome in a headless/CI environment and simply means
// DefaultAdapter falls back to nil.
func openStandaloneDevice() (hal.Device, hal.Queue, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, nil, fmt.Errorf("gpudispatch: vulkan backend not available")
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, fmt.Errorf("gpudispatch: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, nil, fmt.Errorf("gpudispatch: no GPU adapters found")
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, nil, fmt.Errorf("gpudispatch: open device on %q: %w", selected.Info.Name, err)
	}

	return openDev.Device, openDev.Queue, nil
}
