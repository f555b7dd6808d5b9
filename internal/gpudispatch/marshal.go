// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpudispatch

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gsplat/internal/gpucore"
	"github.com/gogpu/gsplat/internal/raster"
)

// appendF32/appendU32 follow the byte-marshaling idiom the teacher uses for
// its own GPU uniform/vertex buffers (internal/gpu/sdf_render.go,
// internal/gpu/convex_renderer.go): binary.LittleEndian.PutUint32 over the
// bit pattern, since WriteBuffer takes raw bytes rather than a pointer.
func appendF32(buf []byte, v float32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendPad(buf []byte, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, 0)
	}
	return buf
}

// marshalCameraUniform builds the wire bytes for the Camera struct declared
// in project_forward.wgsl/project_backward.wgsl (gpucore.CameraUniform
// documents the field layout). world_r is transposed from raster.Mat3's
// row-major storage into WGSL's column-major mat3x3<f32>, each column
// padded to a 16-byte row to match std430, per CameraUniform's doc comment.
func marshalCameraUniform(cam raster.Camera, clipThresh float32, tileWidth int) []byte {
	_ = gpucore.CameraUniform{} // layout reference; fields mirrored field-by-field below

	buf := make([]byte, 0, 128)
	r := cam.World.R
	for col := 0; col < 3; col++ {
		buf = appendF32(buf, r[0][col])
		buf = appendF32(buf, r[1][col])
		buf = appendF32(buf, r[2][col])
		buf = appendPad(buf, 4) // pad column to 16 bytes
	}
	buf = appendF32(buf, cam.World.T[0])
	buf = appendF32(buf, cam.World.T[1])
	buf = appendF32(buf, cam.World.T[2])
	buf = appendPad(buf, 4)
	buf = appendF32(buf, cam.Focal[0])
	buf = appendF32(buf, cam.Focal[1])
	buf = appendF32(buf, cam.PrincipalPoint[0])
	buf = appendF32(buf, cam.PrincipalPoint[1])
	buf = appendU32(buf, uint32(cam.Width))
	buf = appendU32(buf, uint32(cam.Height))
	buf = appendU32(buf, uint32(tileWidth))
	buf = appendF32(buf, clipThresh)
	return buf
}

// marshalViewportInfo builds the wire bytes for the ViewportInfo uniform
// shared by rasterize_forward.wgsl/rasterize_backward.wgsl.
func marshalViewportInfo(width, height, tilesX, tilesY int) []byte {
	_ = gpucore.ViewportInfo{}

	buf := make([]byte, 0, 16)
	buf = appendU32(buf, uint32(width))
	buf = appendU32(buf, uint32(height))
	buf = appendU32(buf, uint32(tilesX))
	buf = appendU32(buf, uint32(tilesY))
	return buf
}

// marshalGaussians builds the wire bytes for the Gaussian storage array
// shared by project_forward.wgsl/project_backward.wgsl, one GaussianGPU
// struct per primitive, in input order.
func marshalGaussians(in raster.GaussianInput) []byte {
	_ = gpucore.GaussianGPU{}

	n := in.N()
	buf := make([]byte, 0, n*48)
	for i := 0; i < n; i++ {
		buf = appendF32(buf, in.Means[i][0])
		buf = appendF32(buf, in.Means[i][1])
		buf = appendF32(buf, in.Means[i][2])
		buf = appendPad(buf, 4)
		buf = appendF32(buf, in.LogScales[i][0])
		buf = appendF32(buf, in.LogScales[i][1])
		buf = appendF32(buf, in.LogScales[i][2])
		buf = appendPad(buf, 4)
		buf = appendF32(buf, in.Quats[i][0])
		buf = appendF32(buf, in.Quats[i][1])
		buf = appendF32(buf, in.Quats[i][2])
		buf = appendF32(buf, in.Quats[i][3])
		buf = appendF32(buf, in.RawOpacities[i])
		buf = appendPad(buf, 12)
	}
	return buf
}

// marshalSHCoeffs flattens the per-primitive SH coefficient rows
// (raster.GaussianInput.SHCoeffs, each already 3*K coefficient-major per
// sh.go's convention) into the flat N*3*K buffer project_forward.wgsl and
// project_backward.wgsl bind at sh_coeffs.
func marshalSHCoeffs(in raster.GaussianInput) []byte {
	n := in.N()
	if n == 0 {
		return nil
	}
	k := len(in.SHCoeffs[0])
	buf := make([]byte, 0, n*k*4)
	for i := 0; i < n; i++ {
		for _, c := range in.SHCoeffs[i] {
			buf = appendF32(buf, c)
		}
	}
	return buf
}

// marshalBackground packs the background color the way the original's
// shader uniform does it, per SPEC_FULL.md §5 supplement 5: vec4(r,g,b,r)
// to satisfy WGSL's vec4 uniform alignment instead of a dedicated padding
// field.
func marshalBackground(bg [3]float32) []byte {
	buf := make([]byte, 0, 16)
	buf = appendF32(buf, bg[0])
	buf = appendF32(buf, bg[1])
	buf = appendF32(buf, bg[2])
	buf = appendF32(buf, bg[0])
	return buf
}
