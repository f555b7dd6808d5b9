//go:build !nogpu

package gpudispatch

import "github.com/gogpu/gpucontext"

// DeviceHandle is the integration point for a host application that already
// owns a GPU device (e.g. a gogpu.App) to hand it to gsplat instead of
// gsplat opening its own, the same role render.DeviceHandle plays for the
// teacher's 2D renderer: gsplat receives a device, it does not create one.
//
// It is a direct alias for gpucontext.DeviceProvider. gpucontext.Device and
// gpucontext.Queue are a separate type hierarchy from the hal.Device/
// hal.Queue pair NewWGPUAdapter wants; gsplat has no bridge between the two
// yet, so a DeviceHandle from a host is not usable directly here until one
// is written. Kept as the named integration point so that bridge has
// somewhere to attach.
type DeviceHandle = gpucontext.DeviceProvider

