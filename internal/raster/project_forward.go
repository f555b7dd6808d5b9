// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Projection forward (spec §4.1). Pure-Go mirror of the ProjectSplats WGSL
// kernel: per primitive, computes screen mean/conic/color/radius/tile
// count and atomically compacts into the visible set.

package raster

import "math"

// ProjectForward implements spec §4.1. It allocates a ProjectedState sized
// for N primitives (padding beyond NumVisible is left zero, mirroring the
// GPU kernel writing into a preallocated buffer via atomic compaction)
// and returns it together with the tile bounds used to size the
// intersection stream.
func ProjectForward(cam Camera, in GaussianInput, cfg Config) ProjectedState {
	n := in.N()
	st := ProjectedState{
		XYs:                  make([]Vec2, n),
		Depths:               make([]float32, n),
		Colors:               make([]Vec4, n),
		ConicComps:           make([]Vec4, n),
		Radii:                make([]uint32, n),
		NumTilesHit:          make([]uint32, n),
		GlobalFromCompactGID: make([]uint32, n),
		ViewDirs:             make([]Vec3, n),
		Cov3D:                make([]Mat3, n),
	}

	tilesX, tilesY := cam.TileBounds(cfg.TileWidth)
	worldToCam := cam.World
	degree, _ := SHDegreeFromCoeffCount(len(in.SHCoeffs[0]) / 3)

	compact := 0
	for g := 0; g < n; g++ {
		mean := in.Means[g]
		camPos := worldToCam.Apply(mean)
		if camPos[2] < cfg.ClipThresh {
			continue // step 1: clipped, invisible
		}

		scale := Vec3{
			float32(math.Exp(float64(in.LogScales[g][0]))),
			float32(math.Exp(float64(in.LogScales[g][1]))),
			float32(math.Exp(float64(in.LogScales[g][2]))),
		}
		rot := in.Quats[g].RotationMatrix()
		cov3D := covarianceFromScaleRot(scale, rot) // step 2

		cov2D, compensation := projectCovariance(cov3D, worldToCam.R, camPos, cam.Focal) // step 3
		conic, ok := invertCov2D(cov2D)
		if !ok {
			continue
		}

		xy := Vec2{
			camPos[0]/camPos[2]*cam.Focal[0] + cam.PrincipalPoint[0],
			camPos[1]/camPos[2]*cam.Focal[1] + cam.PrincipalPoint[1],
		}

		maxEig := maxEigenvalue2x2(cov2D)
		radius := uint32(math.Ceil(3 * math.Sqrt(float64(maxEig))))
		if !aabbIntersectsImage(xy, radius, cam.Width, cam.Height) {
			continue // step 6
		}

		viewDir := mean.Sub(worldToCam.Inverse().T).Normalized() // cam_pos in world space is T of inverse transform
		k := len(in.SHCoeffs[g]) / 3
		var rgb Vec3
		for c := 0; c < 3; c++ {
			ch := make([]float32, k)
			for j := 0; j < k; j++ {
				ch[j] = in.SHCoeffs[g][j*3+c]
			}
			v := evalSHChannel(degree, viewDir, ch) + 0.5
			if v < 0 {
				v = 0
			}
			rgb[c] = v
		}
		opacity := Sigmoid(in.RawOpacities[g])

		tilesHit := tilesHitForAABB(xy, radius, cfg.TileWidth, tilesX, tilesY)

		cid := compact
		compact++
		st.GlobalFromCompactGID[cid] = uint32(g)
		st.XYs[cid] = xy
		st.Depths[cid] = camPos[2]
		st.Colors[cid] = Vec4{rgb[0], rgb[1], rgb[2], opacity}
		st.Radii[cid] = radius
		st.ConicComps[cid] = Vec4{conic[0], conic[1], conic[2], compensation}
		st.NumTilesHit[cid] = uint32(tilesHit)
		st.ViewDirs[cid] = viewDir
		st.Cov3D[cid] = cov3D
	}
	st.NumVisible = compact
	return st
}

// covarianceFromScaleRot forms Sigma = R * diag(scale)^2 * R^T (spec §4.1
// step 2).
func covarianceFromScaleRot(scale Vec3, rot Mat3) Mat3 {
	var s Mat3
	s[0][0] = scale[0] * scale[0]
	s[1][1] = scale[1] * scale[1]
	s[2][2] = scale[2] * scale[2]
	return rot.Mul(s).Mul(rot.Transpose())
}

// projectCovariance applies the Jacobian of the perspective map at the
// primitive's camera-space center to project the 3D covariance into 2D
// screen space (spec §4.1 step 3), and returns a low-pass compensation
// factor: the ratio of the 2D covariance determinant before/after adding a
// small eigenvalue floor (spec §4.1 step 4; spec §9 open question b notes
// this consistency is correctness-sensitive).
func projectCovariance(cov3D Mat3, viewR Mat3, camPos Vec3, focal Vec2) (Mat3, float32) {
	x, y, z := camPos[0], camPos[1], camPos[2]
	invZ := 1 / z
	invZ2 := invZ * invZ

	// J is the 2x3 Jacobian of (fx*x/z, fy*y/z) wrt camera-space (x,y,z),
	// embedded into a 3x3 with a zero third row (spec: screen-space
	// covariance from a first-order projection of the 3D covariance).
	var j Mat3
	j[0][0] = focal[0] * invZ
	j[0][2] = -focal[0] * x * invZ2
	j[1][1] = focal[1] * invZ
	j[1][2] = -focal[1] * y * invZ2

	t := j.Mul(viewR)
	full := t.Mul(cov3D).Mul(t.Transpose())

	cov2D := Mat3{
		{full[0][0], full[0][1], 0},
		{full[1][0], full[1][1], 0},
		{0, 0, 1},
	}

	detOrig := cov2D[0][0]*cov2D[1][1] - cov2D[0][1]*cov2D[1][0]

	const eps = 0.3
	cov2D[0][0] += eps
	cov2D[1][1] += eps
	detBlur := cov2D[0][0]*cov2D[1][1] - cov2D[0][1]*cov2D[1][0]

	compensation := float32(0)
	if detBlur > 0 {
		ratio := detOrig / detBlur
		if ratio > 0 {
			compensation = float32(math.Sqrt(float64(ratio)))
		}
	}
	return cov2D, compensation
}

// invertCov2D inverts the upper-left 2x2 of a covariance matrix, returning
// (conic.xx, conic.xy, conic.yy) (spec §4.1 step 4). ok is false for a
// degenerate (non-invertible) covariance, which the kernel treats as
// invisible.
func invertCov2D(cov2D Mat3) (Vec3, bool) {
	a, b, d := cov2D[0][0], cov2D[0][1], cov2D[1][1]
	det := a*d - b*b
	if det <= 1e-12 {
		return Vec3{}, false
	}
	invDet := 1 / det
	return Vec3{d * invDet, -b * invDet, a * invDet}, true
}

// maxEigenvalue2x2 returns the larger eigenvalue of the symmetric 2x2
// covariance (spec §4.1 step 6, "max_eigen(Sigma')").
func maxEigenvalue2x2(cov2D Mat3) float32 {
	a, b, d := cov2D[0][0], cov2D[0][1], cov2D[1][1]
	mid := (a + d) / 2
	disc := mid*mid - (a*d - b*b)
	if disc < 0 {
		disc = 0
	}
	return mid + float32(math.Sqrt(float64(disc)))
}

// aabbIntersectsImage reports whether the screen-aligned AABB [xy ±
// radius] intersects [0,width) x [0,height) (spec §4.1 step 6).
func aabbIntersectsImage(xy Vec2, radius uint32, width, height int) bool {
	r := float32(radius)
	minX, maxX := xy[0]-r, xy[0]+r
	minY, maxY := xy[1]-r, xy[1]+r
	if maxX < 0 || minX >= float32(width) {
		return false
	}
	if maxY < 0 || minY >= float32(height) {
		return false
	}
	return true
}

// tilesHitForAABB counts the tiles in [0,tilesX)x[0,tilesY) whose square
// intersects the primitive's screen AABB (spec §4.1 step 8).
func tilesHitForAABB(xy Vec2, radius uint32, tileWidth, tilesX, tilesY int) int {
	tx0, tx1, ty0, ty1 := tileRangeForAABB(xy, radius, tileWidth, tilesX, tilesY)
	if tx1 <= tx0 || ty1 <= ty0 {
		return 0
	}
	return (tx1 - tx0) * (ty1 - ty0)
}

// tileRangeForAABB returns the half-open tile-index range [tx0,tx1) x
// [ty0,ty1) clamped to the image's tile grid.
func tileRangeForAABB(xy Vec2, radius uint32, tileWidth, tilesX, tilesY int) (tx0, tx1, ty0, ty1 int) {
	r := float32(radius)
	tx0 = clampInt(int(math.Floor(float64((xy[0]-r)/float32(tileWidth)))), 0, tilesX)
	tx1 = clampInt(int(math.Ceil(float64((xy[0]+r)/float32(tileWidth)))), 0, tilesX)
	ty0 = clampInt(int(math.Floor(float64((xy[1]-r)/float32(tileWidth)))), 0, tilesY)
	ty1 = clampInt(int(math.Ceil(float64((xy[1]+r)/float32(tileWidth)))), 0, tilesY)
	return
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
