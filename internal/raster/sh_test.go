// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import "testing"

func TestSHDegreeFromCoeffCount(t *testing.T) {
	tests := []struct {
		k        int
		want     int
		wantErr  bool
	}{
		{1, 0, false},
		{4, 1, false},
		{9, 2, false},
		{16, 3, false},
		{25, 4, false},
		{2, 0, true},
		{0, 0, true},
		{26, 0, true},
	}
	for _, tt := range tests {
		got, err := SHDegreeFromCoeffCount(tt.k)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SHDegreeFromCoeffCount(%d): want error, got nil", tt.k)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SHDegreeFromCoeffCount(%d): unexpected error %v", tt.k, err)
		}
		if got != tt.want {
			t.Errorf("SHDegreeFromCoeffCount(%d) = %d, want %d", tt.k, got, tt.want)
		}
	}
}

func TestNumSHCoeffsRoundTrip(t *testing.T) {
	for degree := 0; degree <= 4; degree++ {
		k := NumSHCoeffs(degree)
		got, err := SHDegreeFromCoeffCount(k)
		if err != nil {
			t.Fatalf("degree %d: NumSHCoeffs=%d round-trips to error: %v", degree, k, err)
		}
		if got != degree {
			t.Errorf("degree %d: NumSHCoeffs=%d round-trips to %d", degree, k, got)
		}
	}
}

// TestEvalSHBasisVJPMatchesFiniteDifference checks that evalSHBasisVJP's
// per-coefficient gradient agrees with central differences of
// evalSHChannel, for every degree (spec §8 "Autodiff vs. finite
// differences").
func TestEvalSHBasisVJPMatchesFiniteDifference(t *testing.T) {
	dir := Vec3{0.267, -0.534, 0.802}.Normalized()
	const h = 1e-3
	const tol = 5e-3

	for degree := 0; degree <= 4; degree++ {
		k := NumSHCoeffs(degree)
		sh := make([]float32, k)
		for i := range sh {
			sh[i] = float32(i+1) * 0.1
		}

		dLdSH := make([]float32, 3*k)
		const dLdResult = 1.0
		const channel = 0
		evalSHBasisVJP(degree, dir, channel, dLdResult, dLdSH)

		for j := 0; j < k; j++ {
			orig := sh[j]
			sh[j] = orig + h
			plus := evalSHChannel(degree, dir, sh)
			sh[j] = orig - h
			minus := evalSHChannel(degree, dir, sh)
			sh[j] = orig

			numeric := (plus - minus) / (2 * h)
			analytic := dLdSH[j*3+channel]
			if diff := numeric - analytic; diff > tol || diff < -tol {
				t.Errorf("degree %d coeff %d: analytic=%v numeric=%v", degree, j, analytic, numeric)
			}
		}
	}
}

func TestEvalSHChannelDegree0IsConstant(t *testing.T) {
	sh := []float32{0.5}
	a := evalSHChannel(0, Vec3{1, 0, 0}, sh)
	b := evalSHChannel(0, Vec3{0, 1, 0}, sh)
	if a != b {
		t.Errorf("degree-0 SH should be direction-independent: got %v and %v", a, b)
	}
	want := float32(shC0) * 0.5
	if !almostEqual(a, want, 1e-6) {
		t.Errorf("degree-0 SH = %v, want %v", a, want)
	}
}
