package gpudispatch

import (
	"fmt"

	"github.com/gogpu/gsplat/cache"
	"github.com/gogpu/naga"
)

type compiledKernel struct {
	spirv []uint32
	err   error
}

// spirvCache memoizes naga's WGSL->SPIR-V compilation per kernel name.
// kernelSources never changes at runtime and naga.Compile is not cheap, so
// every NewPipeline call after the first reuses the same words instead of
// recompiling; this is the same sharded-cache shape the teacher uses for
// its own compiled-pipeline caches (backend/native/pipeline_cache_core.go),
// generalized from pipeline objects to SPIR-V words.
var spirvCache = cache.NewSharded[string, compiledKernel](len(kernelSources), cache.StringHasher)

// compileKernel compiles one of the WGSL sources in kernelSources to
// SPIR-V, the same byte-to-word conversion internal/native.CompileShaderToSPIRV
// uses: naga.Compile returns SPIR-V bytes, and HAL wants little-endian
// 32-bit words.
func compileKernel(name string) ([]uint32, error) {
	if _, ok := kernelSources[name]; !ok {
		return nil, fmt.Errorf("gpudispatch: unknown kernel %q", name)
	}

	result := spirvCache.GetOrCreate(name, func() compiledKernel {
		spirvBytes, err := naga.Compile(kernelSources[name])
		if err != nil {
			return compiledKernel{err: fmt.Errorf("gpudispatch: compile kernel %q: %w", name, err)}
		}

		spirv := make([]uint32, len(spirvBytes)/4)
		for i := range spirv {
			spirv[i] = uint32(spirvBytes[i*4]) |
				uint32(spirvBytes[i*4+1])<<8 |
				uint32(spirvBytes[i*4+2])<<16 |
				uint32(spirvBytes[i*4+3])<<24
		}
		return compiledKernel{spirv: spirv}
	})

	return result.spirv, result.err
}
