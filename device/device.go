// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device exposes accelerator discovery and accelerated backends.
//
// Example:
//
//	for _, info := range device.Available() {
//	    fmt.Println(info.Kind, info.Name, info.Available)
//	}
//
//	session, err := device.Open(tensor.WebGPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	c, err := session.Backend().MatMul(a, b)
package device

import (
	"fmt"
	"strings"

	"github.com/born-ml/tensorcore/internal/backend/accel"
	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/device/emulator"
	"github.com/born-ml/tensorcore/internal/device/webgpu"
	"github.com/born-ml/tensorcore/tensor"
)

// Info describes a compute device.
type Info = device.Info

// Backend runs tensor operations as kernels on an accelerator queue.
type Backend = accel.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// Available lists the CPU followed by every accelerator kind and whether it
// can be opened on this host.
func Available() []Info {
	return device.Probe(emulator.Probe, webgpu.Probe)
}

// ParseKind maps a device name ("cpu", "webgpu", "emulator") to its kind.
func ParseKind(name string) (tensor.Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return tensor.CPU, nil
	case "webgpu", "gpu":
		return tensor.WebGPU, nil
	case "emulator":
		return tensor.Emulator, nil
	default:
		return tensor.CPU, fmt.Errorf("unknown device %q: %w", name, tensor.ErrUnavailable)
	}
}

// Session owns one accelerator, its compiled kernels and the queue bound
// for this caller.
type Session struct {
	registry *device.Registry
	ctx      *device.Context
	backend  *accel.Backend
}

// Open attaches the accelerator of the given kind, compiles the standard
// kernels and binds a queue. The CPU has no accelerator session.
func Open(kind tensor.Device) (*Session, error) {
	var acc device.Accelerator
	switch kind {
	case tensor.Emulator:
		acc = emulator.New()
	case tensor.WebGPU:
		a, err := webgpu.New()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", kind, err)
		}
		acc = a
	default:
		return nil, fmt.Errorf("open %s: not an accelerator: %w", kind, tensor.ErrUnavailable)
	}

	reg := device.NewRegistry()
	if err := reg.Attach(acc); err != nil {
		acc.Release()
		return nil, err
	}
	ctx := device.NewContext(reg)
	b, err := accel.New(ctx, kind)
	if err != nil {
		_ = ctx.Close()
		reg.Close()
		return nil, err
	}
	return &Session{registry: reg, ctx: ctx, backend: b}, nil
}

// Backend returns the accelerated backend bound to this session's queue.
func (s *Session) Backend() *Backend { return s.backend }

// Kernels lists the kernel names compiled for the session's device.
func (s *Session) Kernels() []string {
	return s.registry.Kernels(s.backend.Device())
}

// Close drains and releases the queue, then every kernel and the accelerator.
// Device buffers still attached to live tensors are freed with the
// accelerator; those tensors keep their host values.
func (s *Session) Close() error {
	err := s.ctx.Close()
	s.registry.Close()
	return err
}
