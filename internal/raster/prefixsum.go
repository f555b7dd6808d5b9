// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Tile-hit prefix sum (spec §4.3): permute num_tiles_hit into depth-sorted
// order, then inclusive-scan it into per-primitive intersection offsets.

package raster

// DepthSort implements spec §4.2: radix-argsort the visible primitives by
// ascending depth, reinterpreting each positive float32 depth as its u32
// bit pattern (valid IEEE-754 ordering for positive floats; spec §9
// "Depth as radix key"). Returns compact_from_depthsort_gid.
func DepthSort(st ProjectedState) []uint32 {
	n := len(st.Depths)
	depthBits := make([]uint32, n)
	arrangedIDs := make([]uint32, n)
	for i := 0; i < n; i++ {
		depthBits[i] = float32Bits(st.Depths[i])
		arrangedIDs[i] = uint32(i)
	}
	_, compactFromDepthsortGID := RadixArgsort(depthBits, arrangedIDs, st.NumVisible, 32)
	return compactFromDepthsortGID
}

// TileHitPrefixSum implements spec §4.3. It gathers num_tiles_hit by
// compactFromDepthsortGID (reordering per-visible tile counts into
// depth-sorted order) and computes the inclusive prefix sum over the full
// N-length buffer, guarded so entries at or beyond NumVisible contribute
// zero (mirrors the GPU kernel's `compact_gid < num_visible` guard, spec
// §4.3).
func TileHitPrefixSum(st ProjectedState, compactFromDepthsortGID []uint32) (numTilesHitSorted, cumTilesHit []uint32) {
	n := len(st.NumTilesHit)
	numTilesHitSorted = make([]uint32, n)
	for d := 0; d < n; d++ {
		if d < st.NumVisible {
			numTilesHitSorted[d] = st.NumTilesHit[compactFromDepthsortGID[d]]
		}
	}
	cumTilesHit = make([]uint32, n)
	var running uint32
	for i := 0; i < n; i++ {
		running += numTilesHitSorted[i]
		cumTilesHit[i] = running
	}
	return numTilesHitSorted, cumTilesHit
}

// MActual returns the true intersection count, the last element of the
// inclusive prefix sum (original_source supplement 3: "num_intersects ...
// read as the last element of cum_tiles_hit").
func MActual(cumTilesHit []uint32) int {
	if len(cumTilesHit) == 0 {
		return 0
	}
	return int(cumTilesHit[len(cumTilesHit)-1])
}
