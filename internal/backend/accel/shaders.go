package accel

// WGSL compute shaders for the standard kernel set.
// Using string constants instead of embed for simplicity.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// tileSize is the 2-D workgroup edge used by the matmul shaders.
const tileSize = 16

// binaryShader returns an element-wise shader computing result = expr,
// where expr may reference a[idx] and b[idx].
func binaryShader(expr string) string {
	return `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = ` + expr + `;
    }
}
`
}

// scalarShader returns a shader computing result = expr over x[idx] and params.s.
func scalarShader(expr string) string {
	return `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    s: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = ` + expr + `;
    }
}
`
}

// matmulShader performs batched matrix multiplication: C = A @ B.
// A is [batch, M, K], B is [batch, K, N] (or [batch, N, K] when bIndex
// reads it transposed), C is [batch, M, N].
func matmulShader(bIndex string) string {
	return `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    M: u32,     // rows of A and C
    K: u32,     // cols of A, rows of B
    N: u32,     // cols of B and C
    batch: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;
    let bat = global_id.z;

    if (row >= params.M || col >= params.N || bat >= params.batch) {
        return;
    }

    let a_off = bat * params.M * params.K;
    let b_off = bat * params.K * params.N;

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        let a_idx = a_off + row * params.K + k;
        let b_idx = b_off + ` + bIndex + `;
        sum = sum + a[a_idx] * b[b_idx];
    }

    let c_idx = bat * params.M * params.N + row * params.N + col;
    result[c_idx] = sum;
}
`
}
