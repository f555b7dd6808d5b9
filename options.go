package gsplat

import "github.com/gogpu/gsplat/internal/raster"

// RenderOptions configures a single Render call.
//
// Example:
//
//	opts := gsplat.DefaultRenderOptions()
//	opts.Background = [3]float32{0.123, 0.123, 0.123}
//	out, ckpt, err := gsplat.Render(cam, in, opts)
type RenderOptions struct {
	// Background is the RGB color composited behind fully-transparent
	// pixels (spec §4.7). Typically in [0,1].
	Background [3]float32

	// ClipThresh is the near-plane clip threshold in camera-space z
	// (spec §4.1). Primitives with z below this are culled. Default 0.01.
	ClipThresh float32

	// TileWidth is the square tile size in pixels used for binning
	// (spec §6, "TILE_WIDTH"). Default 16. Changing this requires the
	// WGSL shaders to be recompiled with a matching workgroup size.
	TileWidth int

	// RenderU32 packs output pixels into a single uint32
	// (pack4x8unorm-style) instead of 4 float32 channels (spec §4.7).
	// Packed output is not differentiable: Backward returns an error if
	// called on a checkpoint produced with RenderU32 set.
	RenderU32 bool

	// UseCPUFallback forces the pure-Go reference pipeline in
	// internal/raster instead of dispatching compiled WGSL on a GPU
	// adapter. Used for testing and for environments with no usable GPU.
	UseCPUFallback bool
}

// DefaultRenderOptions returns the options used when none are supplied
// explicitly: zero background, the spec's default clip threshold, 16px
// tiles, float output, and GPU dispatch preferred over CPU fallback.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		ClipThresh: raster.DefaultClipThresh,
		TileWidth:  raster.TileWidth,
	}
}

// toRasterConfig adapts public options to the internal/raster pipeline
// configuration, applying defaults for zero-valued fields so a caller who
// only sets Background doesn't have to know about ClipThresh/TileWidth.
func (o RenderOptions) toRasterConfig() raster.Config {
	cfg := raster.Config{
		Background: o.Background,
		ClipThresh: o.ClipThresh,
		TileWidth:  o.TileWidth,
		RenderU32:  o.RenderU32,
	}
	if cfg.ClipThresh <= 0 {
		cfg.ClipThresh = raster.DefaultClipThresh
	}
	if cfg.TileWidth <= 0 {
		cfg.TileWidth = raster.TileWidth
	}
	return cfg
}
