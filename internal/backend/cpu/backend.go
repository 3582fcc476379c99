// Package cpu implements the reference handler: a sequential, array-based
// realization of the operation contract used as the correctness oracle for
// every other backend.
package cpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// CPUBackend implements tensor.Handler with single-threaded loops.
type CPUBackend struct {
	device tensor.Device
}

// Compile-time check that CPUBackend implements tensor.Handler.
var _ tensor.Handler = (*CPUBackend)(nil)

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Allocate returns a zeroed tensor in host memory.
func (cpu *CPUBackend) Allocate(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return tensor.NewRaw(shape, dtype, cpu.device)
}

// FromHost copies a host tensor. The reference backend shares the host
// memory space, but the copy keeps ownership semantics identical to device
// backends.
func (cpu *CPUBackend) FromHost(src *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Transfer("from_host", src, tensor.CPU, cpu.device)
}

// ToHost copies a tensor of this backend to the host.
func (cpu *CPUBackend) ToHost(src *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Transfer("to_host", src, cpu.device, tensor.CPU)
}

// Sync returns immediately: every operation completes before returning.
func (cpu *CPUBackend) Sync() error {
	return nil
}

// Fill sets every element of t to value.
func (cpu *CPUBackend) Fill(t *tensor.RawTensor, value float32) error {
	if err := tensor.CheckElementwise("fill", cpu.device, t); err != nil {
		return err
	}
	data := t.AsFloat32()
	for i := range data {
		data[i] = value
	}
	return nil
}

// CopyTo copies src into dst.
func (cpu *CPUBackend) CopyTo(src, dst *tensor.RawTensor) error {
	if err := tensor.CheckCopy(cpu.device, src, dst); err != nil {
		return err
	}
	copy(dst.Data(), src.Data())
	return nil
}
