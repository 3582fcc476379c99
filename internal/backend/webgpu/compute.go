//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/born-ml/handler/internal/tensor"
)

// maxWorkgroupsPerDim is the WebGPU limit on workgroups along one dispatch
// dimension. Larger launches spill into the y dimension.
const maxWorkgroupsPerDim = 65535

// kernel is one compute dispatch: a shader over threads invocations.
//
// Bindings follow the shader layout: inputs first as read-only storage,
// then outputs as read_write storage, then the uniform params. Outputs are
// uploaded with their current contents so accumulating kernels can read
// them.
type kernel struct {
	name    string // shader and pipeline cache key
	code    string
	threads int
	inputs  []*tensor.RawTensor
	outputs []*tensor.RawTensor
	params  *uniform
}

// uniform assembles a params struct of 4-byte scalars.
type uniform struct {
	data []byte
}

// newUniform starts a params struct whose first field is the thread count.
func newUniform(threads int) *uniform {
	return (&uniform{}).u32(threads)
}

func (u *uniform) u32(v int) *uniform {
	//nolint:gosec // G115: geometry values are non-negative and validated
	u.data = binary.LittleEndian.AppendUint32(u.data, uint32(v))
	return u
}

func (u *uniform) f32(v float32) *uniform {
	u.data = binary.LittleEndian.AppendUint32(u.data, math.Float32bits(v))
	return u
}

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)
	if shader == nil {
		return nil
	}

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")
	if pipeline == nil {
		return nil
	}

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// bufferSize rounds a byte count up to a bindable size. Zero-sized
// bindings are invalid in WebGPU.
func bufferSize(n int) uint64 {
	//nolint:gosec // G115: byte sizes are non-negative
	size := uint64(n)
	if size < 4 {
		size = 4
	}
	return (size + 3) &^ 3
}

// createBuffer creates a GPU buffer and uploads data into it.
func (b *Backend) createBuffer(op string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	size := bufferSize(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	if buffer == nil {
		return nil, errors.Wrapf(tensor.ErrOutOfMemory, "%s: device refused a %d byte buffer", op, size)
	}

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer, nil
}

// createUniformBuffer creates a uniform buffer with proper alignment.
// Uniform buffers require 16-byte alignment for struct fields.
func (b *Backend) createUniformBuffer(op string, data []byte) (*wgpu.Buffer, uint64, error) {
	//nolint:gosec // G115: params are a few words
	alignedSize := (uint64(len(data)) + 15) &^ 15

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})
	if buffer == nil {
		return nil, 0, errors.Wrapf(tensor.ErrOutOfMemory, "%s: device refused the params buffer", op)
	}

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer, alignedSize, nil
}

// readBuffer copies a GPU buffer into dst.
// Uses a pooled staging buffer since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(op string, srcBuffer *wgpu.Buffer, dst []byte) error {
	size := bufferSize(len(dst))
	usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst

	stagingBuffer := b.bufferPool.Acquire(size, usage)
	if stagingBuffer == nil {
		return errors.Wrapf(tensor.ErrOutOfMemory, "%s: device refused a %d byte staging buffer", op, size)
	}
	defer b.bufferPool.Release(stagingBuffer, size, usage)

	encoder := b.device.CreateCommandEncoder(nil)
	defer encoder.Release()
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	defer cmdBuffer.Release()
	b.queue.Submit(cmdBuffer)

	if err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: %s: failed to map staging buffer: %w", op, err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(dst, mappedSlice)
	stagingBuffer.Unmap()

	return nil
}

// checkBudget rejects a dispatch whose bindings exceed the memory limit.
func (b *Backend) checkBudget(op string, k *kernel) error {
	if b.limit <= 0 {
		return nil
	}
	var total int64
	for _, t := range k.inputs {
		total += int64(bufferSize(t.ByteSize()))
	}
	for _, t := range k.outputs {
		// Device buffer plus its staging copy.
		total += 2 * int64(bufferSize(t.ByteSize()))
	}
	if total > b.limit {
		b.logger.Debug("dispatch over memory limit", "op", op, "bytes", total, "limit", b.limit)
		return errors.Wrapf(tensor.ErrOutOfMemory, "%s: needs %d device bytes, limit is %d", op, total, b.limit)
	}
	return nil
}

// workgroups splits a launch of n threads into a 2D grid of workgroups.
// Shaders rebuild the flat index as gid.x + gid.y * nwg.x * workgroupSize.
func workgroups(n int) (x, y uint32) {
	groups := (n + workgroupSize - 1) / workgroupSize
	gx := min(groups, maxWorkgroupsPerDim)
	gy := (groups + gx - 1) / gx
	//nolint:gosec // G115: bounded by maxWorkgroupsPerDim
	return uint32(gx), uint32(gy)
}

// run executes k and copies its outputs back into their host mirrors.
// Nothing is written to the outputs unless the whole dispatch succeeds.
func (b *Backend) run(op string, k kernel) error {
	if k.threads == 0 {
		return nil
	}
	if err := b.checkBudget(op, &k); err != nil {
		return err
	}

	shader := b.compileShader(k.name, k.code)
	if shader == nil {
		return fmt.Errorf("webgpu: %s: failed to compile shader %s", op, k.name)
	}
	pipeline := b.getOrCreatePipeline(k.name, shader)
	if pipeline == nil {
		return fmt.Errorf("webgpu: %s: failed to create pipeline %s", op, k.name)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(k.inputs)+len(k.outputs)+1)
	outBuffers := make([]*wgpu.Buffer, 0, len(k.outputs))
	var binding uint32

	for _, t := range k.inputs {
		buffer, err := b.createBuffer(op, t.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
		if err != nil {
			return err
		}
		defer buffer.Release()
		entries = append(entries, wgpu.BufferBindingEntry(binding, buffer, 0, bufferSize(t.ByteSize())))
		binding++
	}
	for _, t := range k.outputs {
		buffer, err := b.createBuffer(op, t.Data(),
			wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		defer buffer.Release()
		entries = append(entries, wgpu.BufferBindingEntry(binding, buffer, 0, bufferSize(t.ByteSize())))
		outBuffers = append(outBuffers, buffer)
		binding++
	}

	params, paramsSize, err := b.createUniformBuffer(op, k.params.data)
	if err != nil {
		return err
	}
	defer params.Release()
	entries = append(entries, wgpu.BufferBindingEntry(binding, params, 0, paramsSize))

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	if bindGroupLayout == nil {
		return fmt.Errorf("webgpu: %s: pipeline has no bind group layout", op)
	}
	defer bindGroupLayout.Release()
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, entries)
	if bindGroup == nil {
		return fmt.Errorf("webgpu: %s: failed to create bind group", op)
	}
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	defer encoder.Release()
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	gx, gy := workgroups(k.threads)
	computePass.DispatchWorkgroups(gx, gy, 1)
	computePass.End()
	computePass.Release()

	cmdBuffer := encoder.Finish(nil)
	defer cmdBuffer.Release()
	b.queue.Submit(cmdBuffer)

	// Read every output before touching any host mirror.
	results := make([][]byte, len(k.outputs))
	for i, t := range k.outputs {
		results[i] = make([]byte, t.ByteSize())
		if err := b.readBuffer(op, outBuffers[i], results[i]); err != nil {
			return err
		}
	}
	for i, t := range k.outputs {
		copy(t.Data(), results[i])
	}
	return nil
}
