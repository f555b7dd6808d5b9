// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Intersection emission (spec §4.4) and tile sort (spec §4.5).

package raster

// EmitIntersections implements spec §4.4: for each depth-sorted primitive
// d (guarded by d < num_visible), compute its tile AABB and emit one
// (tile_id, d) record per covered tile at slot base+k, where base =
// cum_tiles_hit[d] - num_tiles_hit[d]. mCap bounds the returned buffers
// (spec §3 invariant 3); writes beyond mCap are dropped (spec §7,
// "Intersection overflow").
func EmitIntersections(st ProjectedState, cam Camera, cfg Config, compactFromDepthsortGID []uint32, numTilesHitSorted, cumTilesHit []uint32, mCap int) Intersections {
	tilesX, _ := cam.TileBounds(cfg.TileWidth)

	tileIDFromIsect := make([]uint32, mCap)
	depthsortGIDFromIsect := make([]uint32, mCap)
	truncated := false

	tilesY := tilesYFor(cam, cfg)
	for d := 0; d < st.NumVisible; d++ {
		cid := compactFromDepthsortGID[d]
		base := int(cumTilesHit[d]) - int(numTilesHitSorted[d])

		k := 0
		txLo, txHi, tyLo, tyHi := tileRangeForAABB(st.XYs[cid], st.Radii[cid], cfg.TileWidth, tilesX, tilesY)
		for ty := tyLo; ty < tyHi; ty++ {
			for tx := txLo; tx < txHi; tx++ {
				slot := base + k
				k++
				if slot >= mCap {
					truncated = true
					continue
				}
				tileIDFromIsect[slot] = uint32(ty*tilesX + tx)
				depthsortGIDFromIsect[slot] = uint32(d)
			}
		}
	}

	mActual := MActual(cumTilesHit)
	isects := Intersections{
		TileIDFromIsect:         tileIDFromIsect,
		DepthsortGIDFromIsect:   depthsortGIDFromIsect,
		CompactFromDepthsortGID: compactFromDepthsortGID,
		CumTilesHit:             cumTilesHit,
		MActual:                 mActual,
		MCap:                    mCap,
	}
	if truncated || mActual > mCap {
		logTruncation(mActual, mCap)
	}
	return isects
}

func tilesYFor(cam Camera, cfg Config) int {
	_, ty := cam.TileBounds(cfg.TileWidth)
	return ty
}

// TileSort implements spec §4.5: radix-argsort the intersection stream's
// first MActual entries by tile_id, carrying depthsort_gid as payload,
// using the minimum number of significant bits for the tile count.
func TileSort(isects Intersections, numTiles int) Intersections {
	bits := bitsForCount(uint32(numTiles))
	sortedTileID, sortedDepthsortGID := RadixArgsort(isects.TileIDFromIsect, isects.DepthsortGIDFromIsect, isects.MActual, bits)
	isects.TileIDFromIsect = sortedTileID
	isects.DepthsortGIDFromIsect = sortedDepthsortGID
	return isects
}
