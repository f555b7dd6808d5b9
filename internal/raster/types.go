// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package raster is the pure-Go CPU reference implementation of the
// tile-based Gaussian splat rasterizer: projection, depth sort, tile-hit
// prefix sum, intersection emission, tile sort, bin edges, and forward/
// backward rasterization (spec §4.1-§4.9). It mirrors, kernel for kernel,
// the WGSL compute shaders dispatched by internal/gpu, the way the
// teacher's internal/gpu/tilecompute package mirrors its own WGSL.
package raster

import (
	"errors"
	"fmt"
)

// TileWidth is the compile-time tile size in pixels (spec §6,
// "TILE_WIDTH"). Changing it requires recompiling the WGSL shaders with a
// matching workgroup size, so it is a constant rather than a Config field
// consumers can vary per device.
const TileWidth = 16

// DefaultClipThresh is the default near-plane clip threshold in
// camera-space z (spec §4.1 step 1).
const DefaultClipThresh = 0.01

// VerticalGroups is the workgroup-grid height used to dispatch the bin
// edges stage: a ceil(max_intersects/VerticalGroups) x VerticalGroups grid
// (spec §6, "Bin edges: ... dispatched with VERTICAL_GROUPS-tall
// workgroups"; original_source/crates/brush-render/src/render.rs).
const VerticalGroups = 256

// MaxIntersectsPerTileBudget bounds M_cap together with N*tiles (spec §3
// invariant 3: M_cap = min(N*tiles, 256*4*65535)).
const MaxIntersectsPerTileBudget = 256 * 4 * 65535

// Config carries the per-call tunables of a Render invocation (spec §6
// render entry point inputs, minus camera/parameters/image size which are
// passed as separate arguments).
type Config struct {
	// Background is composited behind fully-transparent pixels.
	Background [3]float32
	// ClipThresh is the near-plane clip threshold in camera-space z.
	ClipThresh float32
	// TileWidth is the square tile size in pixels used for binning.
	TileWidth int
	// RenderU32 packs output pixels into a single uint32 instead of 4
	// float32 channels. Packed output is not differentiable.
	RenderU32 bool
}

// Camera is a pinhole camera: world-to-camera rigid transform, per-axis
// focal length, principal point in pixels, and image size (spec §3,
// "Camera").
type Camera struct {
	World          RigidTransform
	Focal          Vec2
	PrincipalPoint Vec2
	Width          int
	Height         int
}

// TileBounds returns ceil(width/tile), ceil(height/tile) (original_source
// supplement 2: tile_bounds = ceil(img_size / TILE_WIDTH)).
func (c Camera) TileBounds(tile int) (tx, ty int) {
	tx = (c.Width + tile - 1) / tile
	ty = (c.Height + tile - 1) / tile
	return
}

// GaussianInput holds the N-primitive parameter tensors (spec §3,
// "Gaussian parameters (input, N primitives)"). All slices except
// SHCoeffs are length N (Vec3/Vec4/Quat/float32 per primitive); SHCoeffs
// is length N, each entry itself length 3*K.
type GaussianInput struct {
	Means        []Vec3
	LogScales    []Vec3
	Quats        []Quat
	SHCoeffs     [][]float32 // len N, each 3*K
	RawOpacities []float32
	XYDummy      []Vec2 // identity input; see spec §9 "xy_dummy parameter"
}

// N returns the primitive count.
func (g GaussianInput) N() int { return len(g.Means) }

// Validate checks the dimension-mismatch fatal conditions of spec §7
// ("Dimension mismatch", "Too few primitives") before any dispatch.
func (g GaussianInput) Validate() error {
	n := g.N()
	if n < 4 {
		return fmt.Errorf("%w: have %d, need at least 4", ErrTooFewPrimitives, n)
	}
	if len(g.LogScales) != n || len(g.Quats) != n || len(g.SHCoeffs) != n ||
		len(g.RawOpacities) != n || len(g.XYDummy) != n {
		return fmt.Errorf("%w: means has %d rows, one of log_scales/quats/sh_coeffs/raw_opacities/xy_dummy disagrees", ErrDimensionMismatch, n)
	}
	if n == 0 {
		return nil
	}
	k := len(g.SHCoeffs[0])
	if k%3 != 0 {
		return fmt.Errorf("%w: sh_coeffs row length %d not divisible by 3", ErrDimensionMismatch, k)
	}
	if _, err := SHDegreeFromCoeffCount(k / 3); err != nil {
		return fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}
	for i := 1; i < n; i++ {
		if len(g.SHCoeffs[i]) != k {
			return fmt.Errorf("%w: sh_coeffs row %d has length %d, want %d", ErrDimensionMismatch, i, len(g.SHCoeffs[i]), k)
		}
	}
	return nil
}

// ProjectedState is the per-frame projection output (spec §3, "Derived
// per-frame state"), indexed by compact_gid for entries [0, NumVisible).
// Slices are allocated at length N; entries at or beyond NumVisible are
// unused padding rather than being resized, matching the GPU kernels'
// atomic-compaction-into-preallocated-buffer pattern.
type ProjectedState struct {
	XYs                 []Vec2
	Depths              []float32
	Colors              []Vec4
	ConicComps          []Vec4
	Radii               []uint32
	NumTilesHit         []uint32
	GlobalFromCompactGID []uint32
	NumVisible          int

	// ViewDirs caches the per-primitive view direction used for SH
	// evaluation, needed unchanged in projection backward (spec §4.9
	// step 2, "SH -> ... recomputed from direction").
	ViewDirs []Vec3
	// Conditioned 3D covariance R*diag(exp(log_scales))^2*R^T, retained
	// for projection backward's conic -> Sigma' -> Sigma chain.
	Cov3D []Mat3
}

// Intersections is the tile/primitive intersection stream (spec §3,
// "Intersection stream (length M, bounded)"), plus the prefix-sum table
// that sizes it.
type Intersections struct {
	// CumTilesHit is the inclusive prefix sum over num_tiles_hit
	// permuted into depth-sorted order (spec §4.3); length NumVisible.
	// CumTilesHit[NumVisible-1] is M_actual (original_source supplement
	// 3).
	CumTilesHit []uint32

	TileIDFromIsect       []uint32
	DepthsortGIDFromIsect []uint32

	// CompactFromDepthsortGID is produced by depth sort (spec §4.2) and
	// carried alongside the intersection stream because rasterize
	// forward/backward bind it together with DepthsortGIDFromIsect to
	// recover each intersection's compact_gid (original_source: the
	// Rasterize kernel's binding list includes both buffers).
	CompactFromDepthsortGID []uint32

	// MActual is the true (possibly truncated) intersection count;
	// MCap is the preallocated capacity (spec §3 invariant 3, §9
	// "No mid-pipeline readback").
	MActual int
	MCap    int
}

// TileBins holds the [start,end) range within the sorted intersection
// list for every tile (spec §3, "Per-tile bins"), row-major over
// (tiles_y, tiles_x).
type TileBins struct {
	TilesX, TilesY int
	Start          []uint32
	End            []uint32
}

func (b TileBins) Index(tx, ty int) int { return ty*b.TilesX + tx }

// Output is the rasterizer's forward result (spec §3, "Outputs").
type Output struct {
	Width, Height int
	// Img holds H*W*4 float32 channels when RenderU32 is false, or is
	// nil and Packed holds H*W uint32 values when true.
	Img    []float32
	Packed []uint32

	// FinalIndex is the per-pixel intersection index (within the
	// pixel's tile bin) at which alpha accumulation saturated, or the
	// bin's End if it never did (spec §3 invariant 5). Not written in
	// packed mode.
	FinalIndex []uint32
}

// BackwardAux exposes the non-differentiable diagnostic buffer described
// in original_source supplement 4: a per-primitive hit counter, indexed
// by depthsort_gid, incremented atomically during rasterize backward. Not
// consumed by the default gradient path.
type BackwardAux struct {
	HitIDs []uint32
}

// Gradients are the per-primitive output of projection backward (spec
// §4.9), one slot per original (global) primitive index, zero for
// invisible primitives.
type Gradients struct {
	Means        []Vec3
	LogScales    []Vec3
	Quats        []Quat
	SHCoeffs     [][]float32
	RawOpacities []float32
	XYs          []Vec2 // v_xys, registered against XYDummy (spec §6 autodiff contract)
}

// Checkpoint bundles everything projection backward needs, i.e. the
// projection outputs plus the intersection/bin tables and the forward
// rasterization's final_index (spec §3 "Lifecycle", §9 "Checkpointing vs.
// recomputation"). The host autodiff layer is expected to retain the four
// input tensors (means, log_scales, quats, raw_opacities) separately;
// sh_coeffs is intentionally not part of either (spec §6 autodiff
// contract: "sh_coeffs is not retained").
type Checkpoint struct {
	Camera Camera
	Config Config
	// Input carries means/log_scales/quats/raw_opacities for the backward
	// pass; its SHCoeffs field is cleared to nil rows before storage (spec
	// §6 autodiff contract) since only the degree, derived once into SHK,
	// is needed later.
	Input      GaussianInput
	SHK        int
	Projected  ProjectedState
	Isects     Intersections
	Bins       TileBins
	FinalIndex []uint32
}

var (
	// ErrDimensionMismatch is returned when N-row tensors disagree in
	// length or the SH coefficient count is not in {1,4,9,16,25} (spec
	// §7, "Dimension mismatch").
	ErrDimensionMismatch = errors.New("raster: dimension mismatch")
	// ErrTooFewPrimitives is returned for N < 4 (spec §7, "Too few
	// primitives (< 4)").
	ErrTooFewPrimitives = errors.New("raster: too few primitives")
	// ErrNotDifferentiable is returned by Backward when the forward
	// checkpoint used packed u32 output (spec §4.7, "not differentiable
	// in this mode").
	ErrNotDifferentiable = errors.New("raster: packed u32 output is not differentiable")
)
