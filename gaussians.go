// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gsplat

import (
	"fmt"

	"github.com/gogpu/gsplat/internal/raster"
)

// GaussianInput holds the N-primitive parameter tensors of a scene (spec
// §3, "Gaussian parameters").
type GaussianInput struct {
	// Means are world-space positions, one per primitive.
	Means []Vec3
	// LogScales are exponentiated inside the pipeline to get each
	// primitive's anisotropic scale.
	LogScales []Vec3
	// Quats are unit quaternions giving each primitive's covariance-frame
	// rotation, re-normalized inside the pipeline.
	Quats []Quat
	// SHCoeffs holds 3*K spherical-harmonic coefficients per primitive,
	// coefficient-major (sh[k*3+channel]), K one of {1,4,9,16,25}.
	SHCoeffs [][]float32
	// RawOpacities are passed through a sigmoid inside the pipeline.
	RawOpacities []float32
}

// NewGaussianInput validates and wraps N-primitive tensors (spec §7,
// "Dimension mismatch", "Too few primitives (< 4)").
func NewGaussianInput(means, logScales []Vec3, quats []Quat, shCoeffs [][]float32, rawOpacities []float32) (GaussianInput, error) {
	g := GaussianInput{
		Means:        means,
		LogScales:    logScales,
		Quats:        quats,
		SHCoeffs:     shCoeffs,
		RawOpacities: rawOpacities,
	}
	if err := g.validate(); err != nil {
		return GaussianInput{}, err
	}
	return g, nil
}

func (g GaussianInput) validate() error {
	n := len(g.Means)
	if n < 4 {
		return fmt.Errorf("%w: have %d, need at least 4", ErrTooFewPrimitives, n)
	}
	if len(g.LogScales) != n || len(g.Quats) != n || len(g.SHCoeffs) != n || len(g.RawOpacities) != n {
		return fmt.Errorf("%w: means has %d rows, one of log_scales/quats/sh_coeffs/raw_opacities disagrees", ErrDimensionMismatch, n)
	}
	k := len(g.SHCoeffs[0])
	if _, err := raster.SHDegreeFromCoeffCount(k / 3); k%3 != 0 || err != nil {
		return fmt.Errorf("%w: sh_coeffs row length %d is not a valid 3*K for K in {1,4,9,16,25}", ErrDimensionMismatch, k)
	}
	for i := 1; i < n; i++ {
		if len(g.SHCoeffs[i]) != k {
			return fmt.Errorf("%w: sh_coeffs row %d has length %d, want %d", ErrDimensionMismatch, i, len(g.SHCoeffs[i]), k)
		}
	}
	return nil
}

// toRasterInput converts to the internal pipeline's representation,
// synthesizing the xy_dummy identity input (spec §9, "xy_dummy parameter").
func (g GaussianInput) toRasterInput() raster.GaussianInput {
	n := len(g.Means)
	in := raster.GaussianInput{
		Means:        make([]raster.Vec3, n),
		LogScales:    make([]raster.Vec3, n),
		Quats:        make([]raster.Quat, n),
		SHCoeffs:     g.SHCoeffs,
		RawOpacities: g.RawOpacities,
		XYDummy:      make([]raster.Vec2, n),
	}
	for i := 0; i < n; i++ {
		in.Means[i] = raster.Vec3{g.Means[i][0], g.Means[i][1], g.Means[i][2]}
		in.LogScales[i] = raster.Vec3{g.LogScales[i][0], g.LogScales[i][1], g.LogScales[i][2]}
		in.Quats[i] = raster.Quat{g.Quats[i][0], g.Quats[i][1], g.Quats[i][2], g.Quats[i][3]}
	}
	return in
}
