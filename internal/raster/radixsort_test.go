// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import "testing"

func TestRadixArgsortOrdersKeys(t *testing.T) {
	keys := []uint32{50, 3, 999, 17, 0, 255, 128}
	payload := []uint32{0, 1, 2, 3, 4, 5, 6}
	count := len(keys)

	sortedKeys, sortedPayload := RadixArgsort(keys, payload, count, 32)

	for i := 1; i < count; i++ {
		if sortedKeys[i-1] > sortedKeys[i] {
			t.Fatalf("not sorted at %d: %v > %v", i, sortedKeys[i-1], sortedKeys[i])
		}
	}

	// Payload must travel with its key (argsort, not a plain sort).
	for i := 0; i < count; i++ {
		orig := payload[sortedPayload[i]]
		if orig != sortedKeys[i] {
			t.Errorf("payload[%d]=%d does not match its original key %d, want %d", i, sortedPayload[i], orig, sortedKeys[i])
		}
	}
}

func TestRadixArgsortRespectsCount(t *testing.T) {
	keys := []uint32{9, 1, 5, 1000, 1000, 1000}
	payload := []uint32{0, 1, 2, 3, 4, 5}
	// Only the first 3 entries are "live"; the tail must not affect them.
	sortedKeys, _ := RadixArgsort(keys, payload, 3, 32)
	want := []uint32{1, 5, 9}
	for i, w := range want {
		if sortedKeys[i] != w {
			t.Errorf("sortedKeys[%d] = %d, want %d", i, sortedKeys[i], w)
		}
	}
}

func TestRadixArgsortSignificantBits(t *testing.T) {
	// Keys fit in 8 significant bits; requesting fewer bits than needed
	// would corrupt ordering, so this exercises the tile-sort path's
	// bits-for-tile-count sizing (spec §4.5).
	keys := []uint32{200, 3, 255, 0, 128}
	payload := []uint32{0, 1, 2, 3, 4}
	bits := bitsForCount(256)
	sortedKeys, _ := RadixArgsort(keys, payload, len(keys), bits)
	for i := 1; i < len(sortedKeys); i++ {
		if sortedKeys[i-1] > sortedKeys[i] {
			t.Fatalf("not sorted with bits=%d at %d: %v > %v", bits, i, sortedKeys[i-1], sortedKeys[i])
		}
	}
}

func TestBitsForCount(t *testing.T) {
	tests := []struct {
		n    uint32
		want int
	}{
		{1, 1},
		{2, 2},
		{255, 8},
		{256, 9},
		{1024, 11},
	}
	for _, tt := range tests {
		if got := bitsForCount(tt.n); got != tt.want {
			t.Errorf("bitsForCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
