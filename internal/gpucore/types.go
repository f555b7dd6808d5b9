package gpucore

// Resource IDs
//
// These opaque IDs represent GPU resources. Each adapter implementation
// maintains a mapping between IDs and actual backend resources. IDs are
// uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// ComputePipelineID is an opaque handle to a compute pipeline.
type ComputePipelineID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageMapRead   BufferUsage = 1 << 0
	BufferUsageMapWrite  BufferUsage = 1 << 1
	BufferUsageCopySrc   BufferUsage = 1 << 2
	BufferUsageCopyDst   BufferUsage = 1 << 3
	BufferUsageUniform   BufferUsage = 1 << 4
	BufferUsageStorage   BufferUsage = 1 << 5
	BufferUsageIndirect  BufferUsage = 1 << 6
)

// TextureFormat specifies the format of texture data. gsplat only ever
// reads back RGBA32Float (the forward image) or R32Uint (packed u32
// output, final_index), but the full enum is kept so an adapter can be
// shared with a future non-splat consumer without widening its type.
type TextureFormat uint32

const (
	TextureFormatRGBA32Float TextureFormat = iota + 1
	TextureFormatR32Float
	TextureFormatR32Uint
	TextureFormatRGBA8Unorm
)

// BindingType specifies the type of a shader binding.
type BindingType uint32

const (
	BindingTypeUniformBuffer BindingType = iota + 1
	BindingTypeStorageBuffer
	BindingTypeReadOnlyStorageBuffer
)

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Label        string
	Layout       PipelineLayoutID
	ShaderModule ShaderModuleID
	EntryPoint   string
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	Binding        uint32
	Type           BindingType
	MinBindingSize uint64
}

// BindGroupEntry describes a single binding in a bind group.
type BindGroupEntry struct {
	Binding uint32
	Buffer  BufferID
	Offset  uint64
	Size    uint64
	Texture TextureID
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	Label   string
	Layout  BindGroupLayoutID
	Entries []BindGroupEntry
}

// GPU data structures
//
// These mirror the uniform and storage-buffer layouts declared in
// internal/gpudispatch/shaders/*.wgsl. All structs use explicit padding
// so Go's std430-compatible layout (4-byte-aligned scalars, 16-byte
// vec3/vec4 rows) matches what naga lays the WGSL structs out as.

// CameraUniform mirrors the Camera struct in project_forward.wgsl and
// project_backward.wgsl. WorldR is row-major in Go but must be
// transposed into WGSL's column-major mat3x3<f32> before upload; each
// column also needs trailing vec3 padding to meet std430 alignment.
type CameraUniform struct {
	WorldR         [3][4]float32 // 3 columns, each padded to 16 bytes
	WorldT         [3]float32
	_              float32
	Focal          [2]float32
	PrincipalPoint [2]float32
	Width          uint32
	Height         uint32
	TileWidth      uint32
	ClipThresh     float32
}

// ViewportInfo mirrors the ViewportInfo uniform in rasterize_forward.wgsl
// and rasterize_backward.wgsl.
type ViewportInfo struct {
	Width   uint32
	Height  uint32
	TilesX  uint32
	TilesY  uint32
}

// GaussianGPU mirrors the Gaussian storage struct shared by
// project_forward.wgsl and project_backward.wgsl.
type GaussianGPU struct {
	Mean        [3]float32
	_           float32
	LogScale    [3]float32
	_           float32
	Quat        [4]float32
	RawOpacity  float32
	_           [3]float32
}
