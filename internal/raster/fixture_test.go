// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// fixtureTensors is the plain-JSON stand-in for the original_source's
// safetensors fixtures (basic_case, mix_case): one JSON object per case
// under testdata/<name>/case.json, holding the Gaussian input tensors, the
// camera, and the expected forward/backward outputs.
type fixtureTensors struct {
	Camera struct {
		WorldR         [3][3]float32 `json:"world_r"`
		WorldT         [3]float32    `json:"world_t"`
		Focal          [2]float32    `json:"focal"`
		PrincipalPoint [2]float32    `json:"principal_point"`
		Width          int           `json:"width"`
		Height         int           `json:"height"`
	} `json:"camera"`
	Background [3]float32 `json:"background"`
	ClipThresh float32    `json:"clip_thresh"`

	Means        [][3]float32 `json:"means"`
	LogScales    [][3]float32 `json:"log_scales"`
	Quats        [][4]float32 `json:"quats"`
	SHCoeffs     [][]float32  `json:"sh_coeffs"`
	RawOpacities []float32    `json:"raw_opacities"`

	ExpectedImg       []float32 `json:"expected_img"`
	ExpectedVOutImg   []float32 `json:"expected_v_out_img"`
	ExpectedGradMeans []float32 `json:"expected_grad_means"` // flattened N*3, for the backward reference check
}

// loadFixture reads testdata/<name>/case.json. It returns (nil, false) when
// the file is absent, letting callers t.Skip rather than fail: the
// safetensors fixtures this mirrors (original_source's basic_case/mix_case/
// test_reference) are not committed to this environment.
func loadFixture(name string) (*fixtureTensors, bool) {
	data, err := os.ReadFile(filepath.Join("testdata", name, "case.json"))
	if err != nil {
		return nil, false
	}
	var tensors fixtureTensors
	if err := json.Unmarshal(data, &tensors); err != nil {
		return nil, false
	}
	return &tensors, true
}

// toGaussianInput converts the loaded JSON tensors into a GaussianInput and
// Camera, filling XYDummy with zeros (spec §6 autodiff contract: it is an
// identity input, not part of the fixture).
func (f *fixtureTensors) toGaussianInputAndCamera() (GaussianInput, Camera) {
	n := len(f.Means)
	in := GaussianInput{
		Means:        make([]Vec3, n),
		LogScales:    make([]Vec3, n),
		Quats:        make([]Quat, n),
		SHCoeffs:     f.SHCoeffs,
		RawOpacities: f.RawOpacities,
		XYDummy:      make([]Vec2, n),
	}
	for i := 0; i < n; i++ {
		in.Means[i] = Vec3(f.Means[i])
		in.LogScales[i] = Vec3(f.LogScales[i])
		in.Quats[i] = Quat(f.Quats[i])
	}

	cam := Camera{
		World: RigidTransform{
			R: Mat3{f.Camera.WorldR[0], f.Camera.WorldR[1], f.Camera.WorldR[2]},
			T: f.Camera.WorldT,
		},
		Focal:          f.Camera.Focal,
		PrincipalPoint: f.Camera.PrincipalPoint,
		Width:          f.Camera.Width,
		Height:         f.Camera.Height,
	}
	return in, cam
}

// runFixtureCase renders the named fixture and compares against its
// expected_img, then replays Backward against expected_v_out_img and
// compares the flattened gradient, covering spec §8 scenarios 2-3 (golden
// forward comparison and the backward reference check).
func runFixtureCase(t *testing.T, name string) {
	t.Helper()
	f, ok := loadFixture(name)
	if !ok {
		t.Skipf("testdata/%s/case.json not committed in this environment", name)
	}

	in, cam := f.toGaussianInputAndCamera()
	cfg := Config{Background: f.Background, ClipThresh: f.ClipThresh, TileWidth: TileWidth}

	out, ckpt := Render(cam, in, cfg)
	if len(f.ExpectedImg) > 0 {
		if len(out.Img) != len(f.ExpectedImg) {
			t.Fatalf("%s: forward image length = %d, want %d", name, len(out.Img), len(f.ExpectedImg))
		}
		for i, want := range f.ExpectedImg {
			if !almostEqual(out.Img[i], want, 1e-3) {
				t.Errorf("%s: img[%d] = %v, want %v", name, i, out.Img[i], want)
			}
		}
	}

	if len(f.ExpectedVOutImg) == 0 || len(f.ExpectedGradMeans) == 0 {
		return
	}
	grad, _, err := Backward(ckpt, out, f.ExpectedVOutImg)
	if err != nil {
		t.Fatalf("%s: Backward: %v", name, err)
	}
	if len(grad.Means)*3 != len(f.ExpectedGradMeans) {
		t.Fatalf("%s: grad.Means has %d entries, expected_grad_means has %d values", name, len(grad.Means), len(f.ExpectedGradMeans))
	}
	for i, m := range grad.Means {
		for c := 0; c < 3; c++ {
			want := f.ExpectedGradMeans[i*3+c]
			if !almostEqual(m[c], want, 1e-2) {
				t.Errorf("%s: grad.Means[%d][%d] = %v, want %v", name, i, c, m[c], want)
			}
		}
	}
}

// TestFixtureBasicCase exercises spec §8 scenario 2 (golden-fixture
// comparison against original_source's basic_case).
func TestFixtureBasicCase(t *testing.T) {
	runFixtureCase(t, "basic_case")
}

// TestFixtureMixCase exercises spec §8 scenario 3 (golden-fixture
// comparison, including the backward reference check, against
// original_source's mix_case).
func TestFixtureMixCase(t *testing.T) {
	runFixtureCase(t, "mix_case")
}
