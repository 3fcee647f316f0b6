//go:build !windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// New reports that WebGPU is not built for this platform.
func New() (device.Accelerator, error) {
	return nil, fmt.Errorf("webgpu: not supported on this platform: %w", tensor.ErrUnavailable)
}

// Probe reports WebGPU as unavailable.
func Probe() device.Info {
	return device.Info{Kind: tensor.WebGPU, Name: "WebGPU", Available: false}
}
