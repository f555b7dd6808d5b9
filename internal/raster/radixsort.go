// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Shared radix-sort core used by both depth sort (spec §4.2) and tile sort
// (spec §4.5). Both stages are an LSD radix argsort over a uint32 key with
// a uint32 payload, bounded to the first `count` entries and a caller-
// supplied significant bit width — the same shape as the teacher's single
// generic sort core reused by multiple callers (gpucore/pipeline.go).
//
// Cross-device bit-identical ordering is an explicit non-goal (tie-breaks
// under equal keys are stable here, which is sufficient: spec §9 open
// question (a) leaves the exact tie-break rule unspecified).

package raster

const radixBitsPerPass = 8
const radixBucketCount = 1 << radixBitsPerPass

// RadixArgsort stably sorts the first count entries of keys (ascending),
// carrying payload along, using only the low `bits` significant bits of
// each key. keys and payload must have equal length and count <=
// len(keys). Entries at or beyond count are left untouched in the
// returned slices (copied through verbatim), mirroring a GPU kernel that
// guards on `gid < count`.
func RadixArgsort(keys []uint32, payload []uint32, count int, bits int) (sortedKeys, sortedPayload []uint32) {
	n := len(keys)
	curKeys := append([]uint32(nil), keys...)
	curPayload := append([]uint32(nil), payload...)
	if count <= 1 || bits <= 0 {
		return curKeys, curPayload
	}

	tmpKeys := make([]uint32, n)
	tmpPayload := make([]uint32, n)

	for shift := 0; shift < bits; shift += radixBitsPerPass {
		var counts [radixBucketCount + 1]int
		for i := 0; i < count; i++ {
			d := (curKeys[i] >> uint(shift)) & (radixBucketCount - 1)
			counts[d+1]++
		}
		for b := 0; b < radixBucketCount; b++ {
			counts[b+1] += counts[b]
		}
		offsets := counts
		for i := 0; i < count; i++ {
			d := (curKeys[i] >> uint(shift)) & (radixBucketCount - 1)
			pos := offsets[d]
			offsets[d]++
			tmpKeys[pos] = curKeys[i]
			tmpPayload[pos] = curPayload[i]
		}
		curKeys, tmpKeys = tmpKeys, curKeys
		curPayload, tmpPayload = tmpPayload, curPayload
	}
	return curKeys, curPayload
}

// bitsForCount returns the number of significant bits needed to represent
// values in [0, n) -- 32 - leadingZeros(n) (spec §4.5, "bits = 32 -
// leadingZeros(num_tiles)").
func bitsForCount(n uint32) int {
	bits := 0
	for n > 0 {
		bits++
		n >>= 1
	}
	return bits
}
