// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Spherical harmonic color evaluation and its analytic backward pass
// (spec §4.1 step 7, §4.9 step 2 "SH -> v_sh_coeffs, v_mean").
//
// Coefficients for one primitive are laid out coefficient-major,
// [K][3]float32 flattened to length 3*K: sh[k*3+c] is the degree/order-k
// coefficient for channel c. This matches the layout used by the reference
// 3D Gaussian Splatting CUDA kernels this pipeline was distilled from.

package raster

import "fmt"

// Real spherical harmonic basis constants, ported from the reference
// renderer's computeColorFromSH (forward.cu / backward.cu).
const (
	shC0 = 0.28209479177387814
	shC1 = 0.4886025119029199
)

var shC2 = [5]float32{1.0925484305920792, -1.0925484305920792, 0.31539156525252005, -1.0925484305920792, 0.5462742152960396}
var shC3 = [7]float32{-0.5900435899266435, 2.890611442640554, -0.4570457994644658, 0.3731763325901154, -0.4570457994644658, 1.445305721320277, -0.5900435899266435}
var shC4 = [9]float32{2.5033429417967046, -1.7701307697799304, 0.9461746957575601, -0.6690465435572892, 0.10578554691520431, -0.6690465435572892, 0.47308734787878004, -1.7701307697799304, 0.6258357354491761}

// SHDegreeFromCoeffCount maps the number of per-channel SH coefficients to
// a degree. Returns an error for any count outside {1,4,9,16,25}
// (spec §7, "SH count not in {1,4,9,16,25}" is a fatal dimension mismatch).
func SHDegreeFromCoeffCount(k int) (int, error) {
	switch k {
	case 1:
		return 0, nil
	case 4:
		return 1, nil
	case 9:
		return 2, nil
	case 16:
		return 3, nil
	case 25:
		return 4, nil
	default:
		return 0, fmt.Errorf("raster: invalid number of SH coefficients per channel: %d (want one of 1,4,9,16,25)", k)
	}
}

// NumSHCoeffs returns (degree+1)^2, the number of coefficients per channel
// for the given degree. Inverse of SHDegreeFromCoeffCount.
func NumSHCoeffs(degree int) int {
	return (degree + 1) * (degree + 1)
}

// evalSHChannel evaluates one color channel's SH series at view direction
// dir (must be unit length) given that channel's K coefficients, K =
// NumSHCoeffs(degree). Matches spec §4.1 step 7 before the "+0.5, clamp at
// 0" bias: the 0.5 bias and clamp are applied by the caller once per
// channel, not per basis term.
func evalSHChannel(degree int, dir Vec3, sh []float32) float32 {
	x, y, z := dir[0], dir[1], dir[2]
	result := float32(shC0) * sh[0]
	if degree < 1 {
		return result
	}
	result += float32(shC1) * (-y*sh[1] + z*sh[2] - x*sh[3])
	if degree < 2 {
		return result
	}
	xx, yy, zz := x*x, y*y, z*z
	xy, yz, xz := x*y, y*z, x*z
	result += shC2[0]*xy*sh[4] +
		shC2[1]*yz*sh[5] +
		shC2[2]*(2*zz-xx-yy)*sh[6] +
		shC2[3]*xz*sh[7] +
		shC2[4]*(xx-yy)*sh[8]
	if degree < 3 {
		return result
	}
	result += shC3[0]*y*(3*xx-yy)*sh[9] +
		shC3[1]*xy*z*sh[10] +
		shC3[2]*y*(4*zz-xx-yy)*sh[11] +
		shC3[3]*z*(2*zz-3*xx-3*yy)*sh[12] +
		shC3[4]*x*(4*zz-xx-yy)*sh[13] +
		shC3[5]*z*(xx-yy)*sh[14] +
		shC3[6]*x*(xx-3*yy)*sh[15]
	if degree < 4 {
		return result
	}
	result += shC4[0]*xy*(xx-yy)*sh[16] +
		shC4[1]*yz*(3*xx-yy)*sh[17] +
		shC4[2]*xy*(7*zz-1)*sh[18] +
		shC4[3]*yz*(7*zz-3)*sh[19] +
		shC4[4]*(zz*(35*zz-30)+3)*sh[20] +
		shC4[5]*xz*(7*zz-3)*sh[21] +
		shC4[6]*(xx-yy)*(7*zz-1)*sh[22] +
		shC4[7]*xz*(xx-3*yy)*sh[23] +
		shC4[8]*(xx*(xx-3*yy)-yy*(3*xx-yy))*sh[24]
	return result
}

// evalSHBasisVJP is the analytic backward pass of evalSHChannel with
// respect to the coefficients alone: since evalSHChannel is linear in sh,
// dL/dsh[k] is exactly basis_k(dir) * dLdResult, independent of the
// coefficient values themselves. This is why the checkpoint does not need
// to retain sh_coeffs (spec §6 autodiff contract): the Jacobian of color
// w.r.t. sh_coeffs is a function of view direction alone.
//
// This deliberately does not backpropagate into view direction (and so
// not into mean): doing so would require the coefficient values, which
// are unavailable in backward by the same checkpoint-retention policy.
//
// dLdSH is the full coefficient-major (length 3*K) gradient slice for
// this primitive; channel selects which of the 3 color channels
// dLdResult belongs to, so each basis term is written to dLdSH[j*3+channel].
func evalSHBasisVJP(degree int, dir Vec3, channel int, dLdResult float32, dLdSH []float32) {
	x, y, z := dir[0], dir[1], dir[2]

	dLdSH[0*3+channel] += float32(shC0) * dLdResult
	if degree < 1 {
		return
	}
	dLdSH[1*3+channel] += float32(shC1) * -y * dLdResult
	dLdSH[2*3+channel] += float32(shC1) * z * dLdResult
	dLdSH[3*3+channel] += float32(shC1) * -x * dLdResult
	if degree < 2 {
		return
	}

	xx, yy, zz := x*x, y*y, z*z
	xy, yz, xz := x*y, y*z, x*z

	dLdSH[4*3+channel] += shC2[0] * xy * dLdResult
	dLdSH[5*3+channel] += shC2[1] * yz * dLdResult
	dLdSH[6*3+channel] += shC2[2] * (2*zz - xx - yy) * dLdResult
	dLdSH[7*3+channel] += shC2[3] * xz * dLdResult
	dLdSH[8*3+channel] += shC2[4] * (xx - yy) * dLdResult
	if degree < 3 {
		return
	}

	dLdSH[9*3+channel] += shC3[0] * y * (3*xx - yy) * dLdResult
	dLdSH[10*3+channel] += shC3[1] * xy * z * dLdResult
	dLdSH[11*3+channel] += shC3[2] * y * (4*zz - xx - yy) * dLdResult
	dLdSH[12*3+channel] += shC3[3] * z * (2*zz - 3*xx - 3*yy) * dLdResult
	dLdSH[13*3+channel] += shC3[4] * x * (4*zz - xx - yy) * dLdResult
	dLdSH[14*3+channel] += shC3[5] * z * (xx - yy) * dLdResult
	dLdSH[15*3+channel] += shC3[6] * x * (xx - 3*yy) * dLdResult
	if degree < 4 {
		return
	}

	dLdSH[16*3+channel] += shC4[0] * xy * (xx - yy) * dLdResult
	dLdSH[17*3+channel] += shC4[1] * yz * (3*xx - yy) * dLdResult
	dLdSH[18*3+channel] += shC4[2] * xy * (7*zz - 1) * dLdResult
	dLdSH[19*3+channel] += shC4[3] * yz * (7*zz - 3) * dLdResult
	dLdSH[20*3+channel] += shC4[4] * (zz*(35*zz-30) + 3) * dLdResult
	dLdSH[21*3+channel] += shC4[5] * xz * (7*zz - 3) * dLdResult
	dLdSH[22*3+channel] += shC4[6] * (xx - yy) * (7*zz - 1) * dLdResult
	dLdSH[23*3+channel] += shC4[7] * xz * (xx - 3*yy) * dLdResult
	dLdSH[24*3+channel] += shC4[8] * (xx*(xx-3*yy) - yy*(3*xx-yy)) * dLdResult
}
