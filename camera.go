// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gsplat

import (
	"math"

	"github.com/gogpu/gsplat/internal/raster"
)

// Vec3 is a 3D vector: a world-space position or axis.
type Vec3 [3]float32

// Quat is a unit quaternion (x, y, z, w).
type Quat [4]float32

// identityQuat is the zero-rotation quaternion; Camera's zero value uses it
// so a caller who only sets Width/Height/FovX/FovY gets a camera at the
// world origin looking down +z, with no explicit rotation required.
var identityQuat = Quat{0, 0, 0, 1}

// Camera is a pinhole camera (spec §3, "Camera: world-to-camera rigid
// transform ..., per-axis FoV ..., principal point ..., image size").
type Camera struct {
	// Position is the camera's position in world space.
	Position Vec3
	// Rotation is the camera's orientation in world space, applied to map
	// world-space directions into camera space. The zero value is treated
	// as the identity rotation.
	Rotation Quat

	// FovX, FovY are the full field of view in radians along each image
	// axis. Exactly one of {FovX,FovY} or {FocalX,FocalY} must be set;
	// focal lengths take precedence if both are nonzero.
	FovX, FovY float32
	// FocalX, FocalY are focal lengths in pixels, an alternative to FovX/FovY.
	FocalX, FocalY float32

	// PrincipalPoint is in normalized image coordinates ([0,1] x [0,1]);
	// the zero value is treated as the image center (0.5, 0.5).
	PrincipalPoint [2]float32

	Width, Height int
}

func (c Camera) rotation() Quat {
	if c.Rotation == (Quat{}) {
		return identityQuat
	}
	return c.Rotation
}

func (c Camera) focal() (fx, fy float32) {
	fx, fy = c.FocalX, c.FocalY
	if fx == 0 {
		fx = float32(c.Width) / 2 / float32(math.Tan(float64(c.FovX)/2))
	}
	if fy == 0 {
		fy = float32(c.Height) / 2 / float32(math.Tan(float64(c.FovY)/2))
	}
	return fx, fy
}

func (c Camera) principalPoint() (px, py float32) {
	px, py = c.PrincipalPoint[0], c.PrincipalPoint[1]
	if px == 0 && py == 0 {
		px, py = 0.5, 0.5
	}
	return px * float32(c.Width), py * float32(c.Height)
}

// toRasterCamera adapts the public Camera to the internal pipeline's
// world-to-camera representation.
func (c Camera) toRasterCamera() raster.Camera {
	q := c.rotation()
	rot := raster.Quat{q[0], q[1], q[2], q[3]}.RotationMatrix()
	// World holds the world-to-camera transform; a camera rotated by R and
	// positioned at P in world space maps a world point p to camera space
	// via R^T*(p-P) = R^T*p - R^T*P.
	camToWorldR := rot
	worldToCamR := camToWorldR.Transpose()
	t := worldToCamR.MulVec3(raster.Vec3{c.Position[0], c.Position[1], c.Position[2]}).Scale(-1)

	fx, fy := c.focal()
	px, py := c.principalPoint()

	return raster.Camera{
		World:          raster.RigidTransform{R: worldToCamR, T: t},
		Focal:          raster.Vec2{fx, fy},
		PrincipalPoint: raster.Vec2{px, py},
		Width:          c.Width,
		Height:         c.Height,
	}
}
