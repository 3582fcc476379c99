//go:build windows

package webgpu

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/handler/internal/backend/cpu"
	"github.com/born-ml/handler/internal/tensor"
)

func newBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	backend, err := New(cfg)
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	t.Cleanup(backend.Release)
	return backend
}

func randomTensor(t *testing.T, rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.NormFloat64())
	}
	return r
}

func zeros(t *testing.T, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	require.NoError(t, err)
	return r
}

func upload(t *testing.T, b *Backend, host *tensor.RawTensor) *tensor.RawTensor {
	t.Helper()
	dev, err := b.FromHost(host)
	require.NoError(t, err)
	return dev
}

func download(t *testing.T, b *Backend, dev *tensor.RawTensor) *tensor.RawTensor {
	t.Helper()
	host, err := b.ToHost(dev)
	require.NoError(t, err)
	return host
}

var approx = cmpopts.EquateApprox(1e-4, 1e-4)

func assertClose(t *testing.T, got, want *tensor.RawTensor) {
	t.Helper()
	if diff := cmp.Diff(got.AsFloat32(), want.AsFloat32(), approx, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("webgpu differs from reference (-got +want):\n%s", diff)
	}
}

func TestListAdapters(t *testing.T) {
	adapters, err := ListAdapters()
	if err != nil {
		t.Skip("WebGPU not available on this system")
	}
	for i, info := range adapters {
		t.Logf("Adapter %d: %s (%s)", i, info.Device, info.Vendor)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		name string
		info *wgpu.AdapterInfoGo
		want string
	}{
		{"no adapter info", nil, "WebGPU"},
		{"empty device", &wgpu.AdapterInfoGo{Vendor: "Acme"}, "WebGPU"},
		{"named device", &wgpu.AdapterInfoGo{Vendor: "Acme", Device: "Test GPU"}, "WebGPU (Test GPU)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Backend{adapterInfo: tt.info}
			assert.Equal(t, tt.want, b.Name())
			assert.Equal(t, tt.info, b.AdapterInfo())
		})
	}
}

func TestNew(t *testing.T) {
	b := newBackend(t, DefaultConfig())
	assert.NotEmpty(t, b.Name())
	assert.Equal(t, tensor.WebGPU, b.Device())
	assert.NoError(t, b.Sync())
}

func TestElementwiseMatchesReference(t *testing.T) {
	b, ref := newBackend(t, DefaultConfig()), cpu.New()
	rng := rand.New(rand.NewSource(1))
	shape := tensor.Shape{4, 3, 2}
	x, y := randomTensor(t, rng, shape), randomTensor(t, rng, shape)
	seed := randomTensor(t, rng, shape)

	ops := map[string][2]func(a, b, out *tensor.RawTensor) error{
		"add":      {b.AddTT, ref.AddTT},
		"subtract": {b.SubtractTT, ref.SubtractTT},
		"mult":     {b.MultTT, ref.MultTT},
		"divide":   {b.DivideTT, ref.DivideTT},
		"mult_add": {b.MultAddTT, ref.MultAddTT},
	}
	for name, pair := range ops {
		t.Run(name, func(t *testing.T) {
			got := upload(t, b, seed)
			want := seed.Clone()
			require.NoError(t, pair[0](upload(t, b, x), upload(t, b, y), got))
			require.NoError(t, pair[1](x, y, want))
			assertClose(t, download(t, b, got), want)
		})
	}

	got, want := upload(t, b, zeros(t, shape, tensor.Float32)), zeros(t, shape, tensor.Float32)
	require.NoError(t, b.MultST(-2.5, upload(t, b, x), got))
	require.NoError(t, ref.MultST(-2.5, x, want))
	assertClose(t, download(t, b, got), want)

	require.NoError(t, b.AddST(0.75, upload(t, b, x), got))
	require.NoError(t, ref.AddST(0.75, x, want))
	assertClose(t, download(t, b, got), want)
}

func TestMatrixVectorMatchesReference(t *testing.T) {
	b, ref := newBackend(t, DefaultConfig()), cpu.New()
	rng := rand.New(rand.NewSource(2))
	m := randomTensor(t, rng, tensor.Shape{3, 5})

	for _, vs := range []tensor.Shape{{1, 5}, {3, 1}} {
		v := randomTensor(t, rng, vs)
		ops := map[string][2]func(m, v, out *tensor.RawTensor) error{
			"add":    {b.AddMV, ref.AddMV},
			"mult":   {b.MultMV, ref.MultMV},
			"divide": {b.DivideMV, ref.DivideMV},
		}
		for name, pair := range ops {
			got, want := upload(t, b, zeros(t, m.Shape(), tensor.Float32)), zeros(t, m.Shape(), tensor.Float32)
			require.NoError(t, pair[0](upload(t, b, m), upload(t, b, v), got), name)
			require.NoError(t, pair[1](m, v, want), name)
			assertClose(t, download(t, b, got), want)
		}
	}
}

func TestReductionsMatchReference(t *testing.T) {
	b, ref := newBackend(t, DefaultConfig()), cpu.New()
	rng := rand.New(rand.NewSource(3))
	a := randomTensor(t, rng, tensor.Shape{6, 7})

	for _, tc := range []struct {
		axis int
		out  tensor.Shape
	}{
		{0, tensor.Shape{1, 7}},
		{1, tensor.Shape{6}},
		{tensor.AllAxes, tensor.Shape{}},
	} {
		got, want := upload(t, b, zeros(t, tc.out, tensor.Float32)), zeros(t, tc.out, tensor.Float32)
		require.NoError(t, b.SumT(upload(t, b, a), tc.axis, got))
		require.NoError(t, ref.SumT(a, tc.axis, want))
		assertClose(t, download(t, b, got), want)
	}

	feat := randomTensor(t, rng, tensor.Shape{2, 3, 1})
	outShape := tensor.Shape{2, 3, 4, 2}
	got, want := upload(t, b, zeros(t, outShape, tensor.Float32)), zeros(t, outShape, tensor.Float32)
	require.NoError(t, b.BroadcastFeaturesT(upload(t, b, feat), got))
	require.NoError(t, ref.BroadcastFeaturesT(feat, want))
	assert.Equal(t, want.AsFloat32(), download(t, b, got).AsFloat32())

	got, want = upload(t, b, zeros(t, a.Shape(), tensor.Float32)), zeros(t, a.Shape(), tensor.Float32)
	require.NoError(t, b.ClipT(upload(t, b, a), -0.5, 0.5, got))
	require.NoError(t, ref.ClipT(a, -0.5, 0.5, want))
	assert.Equal(t, want.AsFloat32(), download(t, b, got).AsFloat32())

	require.NoError(t, b.LogT(upload(t, b, a), got))
	require.NoError(t, ref.LogT(a, want))
	assertClose(t, download(t, b, got), want)
}

func TestDotMatchesReference(t *testing.T) {
	b, ref := newBackend(t, DefaultConfig()), cpu.New()
	rng := rand.New(rand.NewSource(4))
	x, y := randomTensor(t, rng, tensor.Shape{7, 9}), randomTensor(t, rng, tensor.Shape{9, 4})
	seed := randomTensor(t, rng, tensor.Shape{7, 4})

	got, want := upload(t, b, seed), seed.Clone()
	require.NoError(t, b.DotAddMM(upload(t, b, x), upload(t, b, y), got))
	require.NoError(t, ref.DotAddMM(x, y, want))
	assertClose(t, download(t, b, got), want)

	require.NoError(t, b.DotMM(upload(t, b, x), upload(t, b, y), got))
	require.NoError(t, ref.DotMM(x, y, want))
	assertClose(t, download(t, b, got), want)
}

func TestActivationsMatchReference(t *testing.T) {
	b, ref := newBackend(t, DefaultConfig()), cpu.New()
	rng := rand.New(rand.NewSource(5))
	shape := tensor.Shape{5, 6}
	x, dy := randomTensor(t, rng, shape), randomTensor(t, rng, shape)

	type pair struct {
		forward [2]func(x, y *tensor.RawTensor) error
		deriv   [2]func(x, y, dy, dx *tensor.RawTensor) error
	}
	for name, p := range map[string]pair{
		"sigmoid": {[2]func(x, y *tensor.RawTensor) error{b.Sigmoid, ref.Sigmoid},
			[2]func(x, y, dy, dx *tensor.RawTensor) error{b.SigmoidDeriv, ref.SigmoidDeriv}},
		"tanh": {[2]func(x, y *tensor.RawTensor) error{b.Tanh, ref.Tanh},
			[2]func(x, y, dy, dx *tensor.RawTensor) error{b.TanhDeriv, ref.TanhDeriv}},
		"rel": {[2]func(x, y *tensor.RawTensor) error{b.Rel, ref.Rel},
			[2]func(x, y, dy, dx *tensor.RawTensor) error{b.RelDeriv, ref.RelDeriv}},
	} {
		t.Run(name, func(t *testing.T) {
			y, want := upload(t, b, zeros(t, shape, tensor.Float32)), zeros(t, shape, tensor.Float32)
			require.NoError(t, p.forward[0](upload(t, b, x), y))
			require.NoError(t, p.forward[1](x, want))
			assertClose(t, download(t, b, y), want)

			dx, wantDx := upload(t, b, zeros(t, shape, tensor.Float32)), zeros(t, shape, tensor.Float32)
			require.NoError(t, p.deriv[0](upload(t, b, x), y, upload(t, b, dy), dx))
			require.NoError(t, p.deriv[1](x, want, dy, wantDx))
			assertClose(t, download(t, b, dx), wantDx)
		})
	}
}

func TestRelPropagatesNaN(t *testing.T) {
	b := newBackend(t, DefaultConfig())
	x := zeros(t, tensor.Shape{4}, tensor.Float32)
	copy(x.AsFloat32(), []float32{math32.NaN(), -1, 2, math32.Inf(-1)})
	y := upload(t, b, zeros(t, x.Shape(), tensor.Float32))
	require.NoError(t, b.Rel(upload(t, b, x), y))

	got := download(t, b, y).AsFloat32()
	assert.True(t, math32.IsNaN(got[0]), "got %v", got[0])
	assert.Equal(t, []float32{0, 2, 0}, got[1:])
}

func TestConvMatchesReference(t *testing.T) {
	b, ref := newBackend(t, DefaultConfig()), cpu.New()
	rng := rand.New(rand.NewSource(6))
	const pad = 1
	stride := [2]int{2, 1}
	x := randomTensor(t, rng, tensor.Shape{2, 3, 7, 6})
	w := randomTensor(t, rng, tensor.Shape{4, 3, 3, 2})
	bias := randomTensor(t, rng, tensor.Shape{4})
	outShape, err := tensor.Conv2DOutputShape(2, 4, 7, 6, 3, 2, pad, stride)
	require.NoError(t, err)

	got, want := upload(t, b, zeros(t, outShape, tensor.Float32)), zeros(t, outShape, tensor.Float32)
	require.NoError(t, b.Conv2DForwardBatch(upload(t, b, x), upload(t, b, w), upload(t, b, bias), got, pad, stride))
	require.NoError(t, ref.Conv2DForwardBatch(x, w, bias, want, pad, stride))
	assertClose(t, download(t, b, got), want)

	grad := randomTensor(t, rng, outShape)
	di, dw, db := upload(t, b, randomTensor(t, rng, x.Shape())), upload(t, b, randomTensor(t, rng, w.Shape())),
		upload(t, b, randomTensor(t, rng, bias.Shape()))
	wantDi, wantDw, wantDb := zeros(t, x.Shape(), tensor.Float32), zeros(t, w.Shape(), tensor.Float32),
		zeros(t, bias.Shape(), tensor.Float32)
	require.NoError(t, b.Conv2DBackwardBatch(upload(t, b, x), upload(t, b, w), pad, stride,
		di, upload(t, b, grad), dw, db))
	require.NoError(t, ref.Conv2DBackwardBatch(x, w, pad, stride, wantDi, grad, wantDw, wantDb))
	assertClose(t, download(t, b, di), wantDi)
	assertClose(t, download(t, b, dw), wantDw)
	assertClose(t, download(t, b, db), wantDb)
}

func TestPoolMatchesReference(t *testing.T) {
	b, ref := newBackend(t, DefaultConfig()), cpu.New()
	rng := rand.New(rand.NewSource(7))
	const pad = 1
	window, strides := [2]int{3, 3}, [2]int{2, 2}
	x := randomTensor(t, rng, tensor.Shape{2, 3, 6, 5})
	// Repeated values exercise the first-maximum tie-break.
	for i := range x.AsFloat32() {
		if i%4 == 0 {
			x.AsFloat32()[i] = 1
		}
	}
	outShape, err := tensor.Pool2DOutputShape(2, 3, 6, 5, window, pad, strides)
	require.NoError(t, err)
	argShape := outShape.Concat(2)

	got, gotArg := upload(t, b, zeros(t, outShape, tensor.Float32)), upload(t, b, zeros(t, argShape, tensor.Int32))
	want, wantArg := zeros(t, outShape, tensor.Float32), zeros(t, argShape, tensor.Int32)
	require.NoError(t, b.Pool2DForwardBatch(upload(t, b, x), window, got, pad, strides, gotArg))
	require.NoError(t, ref.Pool2DForwardBatch(x, window, want, pad, strides, wantArg))
	assert.Equal(t, want.AsFloat32(), download(t, b, got).AsFloat32())
	assert.Equal(t, wantArg.AsInt32(), download(t, b, gotArg).AsInt32())

	grad := randomTensor(t, rng, outShape)
	di, wantDi := upload(t, b, randomTensor(t, rng, x.Shape())), zeros(t, x.Shape(), tensor.Float32)
	require.NoError(t, b.Pool2DBackwardBatch(upload(t, b, x), window, got, pad, strides, gotArg, di, upload(t, b, grad)))
	require.NoError(t, ref.Pool2DBackwardBatch(x, window, want, pad, strides, wantArg, wantDi, grad))
	assertClose(t, download(t, b, di), wantDi)
}

func TestMemoryLimitReturnsOutOfMemory(t *testing.T) {
	b := newBackend(t, Config{MemoryLimit: 64})
	x, y := zeros(t, tensor.Shape{32}, tensor.Float32), zeros(t, tensor.Shape{32}, tensor.Float32)
	out := upload(t, b, zeros(t, tensor.Shape{32}, tensor.Float32))
	out.AsFloat32()[0] = 3

	err := b.AddTT(upload(t, b, x), upload(t, b, y), out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tensor.ErrOutOfMemory))
	assert.Equal(t, float32(3), out.AsFloat32()[0])
}

func TestHostTensorsAreRejected(t *testing.T) {
	b := newBackend(t, DefaultConfig())
	host := zeros(t, tensor.Shape{2, 2}, tensor.Float32)
	err := b.AddTT(host, host, host)
	assert.True(t, errors.Is(err, tensor.ErrDeviceMismatch))
}

func TestFillAndCopy(t *testing.T) {
	b := newBackend(t, DefaultConfig())
	dst, err := b.Allocate(tensor.Shape{3, 3}, tensor.Float32)
	require.NoError(t, err)
	require.NoError(t, b.Fill(dst, 1.5))
	for _, v := range download(t, b, dst).AsFloat32() {
		assert.Equal(t, float32(1.5), v)
	}

	src, err := tensor.FromInt32([]int32{-1, 2, -3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)
	copied, err := b.Allocate(tensor.Shape{2, 2}, tensor.Int32)
	require.NoError(t, err)
	require.NoError(t, b.CopyTo(upload(t, b, src), copied))
	assert.Equal(t, []int32{-1, 2, -3, 4}, download(t, b, copied).AsInt32())
}
