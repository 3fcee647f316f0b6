// Package webgpu implements a device.Accelerator on WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
// The accelerator is built on windows, where wgpu_native is shipped; on
// other platforms New reports tensor.ErrUnavailable.
//
// Kernels are WGSL compute shaders with entry point "main". Dispatch binds
// buffer arguments to @binding(0..n-1) of group 0 in order, and packs scalar
// arguments, 4 bytes each, into a uniform buffer at @binding(n).
package webgpu
