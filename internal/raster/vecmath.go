// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Minimal vector/quaternion/matrix math for the rasterizer's camera and
// covariance computations. The teacher's own vector math (point.go,
// matrix.go) is 2D-affine only (no quaternions, no 3x3/4x4), and none of
// the pack's other dependencies (golang.org/x/image, go-text/typesetting)
// cover 3D math either, so this is hand-written on top of math (see
// DESIGN.md).

package raster

import "math"

// Vec2 is a 2D vector, typically a pixel-space or focal-length pair.
type Vec2 [2]float32

// Vec3 is a 3D vector, typically a world or camera-space position.
type Vec3 [3]float32

// Vec4 is a homogeneous 3D vector or an RGBA color.
type Vec4 [4]float32

// Quat is a unit quaternion (x, y, z, w) representing a Gaussian's
// orientation (spec §3, "quats").
type Quat [4]float32

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float32

// Mat4 is a row-major 4x4 matrix.
type Mat4 [4][4]float32

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a[0] * s, a[1] * s, a[2] * s} }
func (a Vec3) Dot(b Vec3) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func (a Vec3) Norm() float32 {
	return float32(math.Sqrt(float64(a.Dot(a))))
}

// Normalized returns a unit vector in the direction of a, or the zero
// vector if a is (numerically) zero.
func (a Vec3) Normalized() Vec3 {
	n := a.Norm()
	if n < 1e-12 {
		return Vec3{}
	}
	return a.Scale(1 / n)
}

// MulVec3 applies m to v (row-major matrix-vector product).
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Mul multiplies two row-major 3x3 matrices, a*b.
func (a Mat3) Mul(b Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float32
			for k := 0; k < 3; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// Add adds two matrices elementwise.
func (a Mat3) Add(b Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

// Scale multiplies every element by s.
func (a Mat3) Scale(s float32) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] * s
		}
	}
	return out
}

// RotationMatrix converts a unit quaternion (x, y, z, w) to its equivalent
// rotation matrix (spec §4.1 step 2, "quat_to_rotmat").
func (q Quat) RotationMatrix() Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	n := float32(math.Sqrt(float64(x*x + y*y + z*z + w*w)))
	if n < 1e-12 {
		return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	x, y, z, w = x/n, y/n, z/n, w/n

	x2, y2, z2 := x+x, y+y, z+z
	xx, yy, zz := x*x2, y*y2, z*z2
	xy, xz, yz := x*y2, x*z2, y*z2
	wx, wy, wz := w*x2, w*y2, w*z2

	return Mat3{
		{1 - (yy + zz), xy - wz, xz + wy},
		{xy + wz, 1 - (xx + zz), yz - wx},
		{xz - wy, yz + wx, 1 - (xx + yy)},
	}
}

// RigidTransform is a rotation-then-translation transform, the camera's
// world-to-camera (or object-to-world) pose (spec §3, "Camera.world").
type RigidTransform struct {
	R Mat3
	T Vec3
}

// Apply transforms a point by the rigid transform: R*p + T.
func (w RigidTransform) Apply(p Vec3) Vec3 {
	return w.R.MulVec3(p).Add(w.T)
}

// Inverse returns the inverse rigid transform.
func (w RigidTransform) Inverse() RigidTransform {
	rt := w.R.Transpose()
	return RigidTransform{R: rt, T: rt.MulVec3(w.T).Scale(-1)}
}

// Mat4 embeds the rigid transform into a homogeneous 4x4 matrix.
func (w RigidTransform) Mat4() Mat4 {
	var out Mat4
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = w.R[i][j]
		}
		out[i][3] = w.T[i]
	}
	out[3] = [4]float32{0, 0, 0, 1}
	return out
}

// float32Bits reinterprets a positive float32 as its u32 bit pattern,
// which preserves ascending numeric order for positive-only floats (spec
// §9, "Depth as radix key").
func float32Bits(f float32) uint32 {
	return math.Float32bits(f)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sigmoid is the logistic function, used to map raw opacities to (0,1)
// (spec §4.1 step 8).
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(float64(-x))))
}

// SigmoidGrad returns d(sigmoid(x))/dx expressed in terms of the already
// evaluated sigmoid(x), sig: sig*(1-sig).
func SigmoidGrad(sig float32) float32 {
	return sig * (1 - sig)
}
