// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gsplat

import "github.com/gogpu/gsplat/internal/raster"

// Sentinel errors re-exported from internal/raster so callers can use
// errors.Is against the public API without reaching into an internal
// package (spec §7, "Error handling design").
var (
	// ErrDimensionMismatch is returned when N-row tensors disagree in
	// length, or the SH coefficient count is not in {1,4,9,16,25}.
	ErrDimensionMismatch = raster.ErrDimensionMismatch
	// ErrTooFewPrimitives is returned for N < 4.
	ErrTooFewPrimitives = raster.ErrTooFewPrimitives
	// ErrNotDifferentiable is returned by Backward when the forward
	// checkpoint used packed u32 output.
	ErrNotDifferentiable = raster.ErrNotDifferentiable
)
