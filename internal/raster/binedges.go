// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Bin edges (spec §4.6): for each position in the tile-sorted
// intersection list, compare neighboring tile ids and record start/end
// offsets per tile.

package raster

// ComputeBinEdges implements spec §4.6. The GPU kernel dispatches a
// VerticalGroups-tall 2D workgroup grid over the sorted intersection list
// (original_source supplement 2); the CPU reference achieves the same
// boundary comparison with a single linear scan since it need not worry
// about workgroup partitioning.
func ComputeBinEdges(isects Intersections, tilesX, tilesY int) TileBins {
	bins := TileBins{
		TilesX: tilesX,
		TilesY: tilesY,
		Start:  make([]uint32, tilesX*tilesY),
		End:    make([]uint32, tilesX*tilesY),
	}
	m := isects.MActual
	if m > len(isects.TileIDFromIsect) {
		m = len(isects.TileIDFromIsect)
	}
	for p := 0; p < m; p++ {
		tile := isects.TileIDFromIsect[p]
		if p == 0 || isects.TileIDFromIsect[p-1] != tile {
			bins.Start[tile] = uint32(p)
		}
		if p == m-1 || isects.TileIDFromIsect[p+1] != tile {
			bins.End[tile] = uint32(p + 1)
		}
	}
	return bins
}
