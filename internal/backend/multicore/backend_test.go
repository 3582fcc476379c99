package multicore

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/handler/internal/backend/cpu"
	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// testConfig forces real fan-out even on tiny tensors.
func testConfig() Config {
	return Config{
		Parallel: parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1},
	}
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

func zeros(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	return r
}

func ints(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	return r
}

var approx = cmpopts.EquateApprox(1e-4, 1e-4)

func assertClose(t *testing.T, got, want *tensor.RawTensor) {
	t.Helper()
	if diff := cmp.Diff(got.AsFloat32(), want.AsFloat32(), approx, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("multicore differs from reference (-got +want):\n%s", diff)
	}
}

func TestElementwiseMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	mc, ref := New(testConfig()), cpu.New()
	shape := tensor.Shape{3, 4, 2, 1}
	a, b := randomTensor(t, rng, shape), randomTensor(t, rng, shape)

	ops := map[string][2]func(a, b, out *tensor.RawTensor) error{
		"add":      {mc.AddTT, ref.AddTT},
		"subtract": {mc.SubtractTT, ref.SubtractTT},
		"mult":     {mc.MultTT, ref.MultTT},
		"divide":   {mc.DivideTT, ref.DivideTT},
		"mult_add": {mc.MultAddTT, ref.MultAddTT},
	}
	for name, pair := range ops {
		t.Run(name, func(t *testing.T) {
			got, want := randomTensor(t, rand.New(rand.NewSource(2)), shape), randomTensor(t, rand.New(rand.NewSource(2)), shape)
			require.NoError(t, pair[0](a, b, got))
			require.NoError(t, pair[1](a, b, want))
			assertClose(t, got, want)
		})
	}
}

func TestReductionsMatchReference(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	mc, ref := New(testConfig()), cpu.New()
	a := randomTensor(t, rng, tensor.Shape{5, 7})

	for _, tc := range []struct {
		axis int
		out  tensor.Shape
	}{
		{0, tensor.Shape{1, 7}},
		{1, tensor.Shape{5}},
		{tensor.AllAxes, tensor.Shape{}},
	} {
		got, want := zeros(t, tc.out), zeros(t, tc.out)
		require.NoError(t, mc.SumT(a, tc.axis, got))
		require.NoError(t, ref.SumT(a, tc.axis, want))
		assertClose(t, got, want)
	}

	feat := randomTensor(t, rng, tensor.Shape{3, 2, 1})
	got, want := zeros(t, tensor.Shape{3, 2, 1, 2, 2}), zeros(t, tensor.Shape{3, 2, 1, 2, 2})
	require.NoError(t, mc.BroadcastFeaturesT(feat, got))
	require.NoError(t, ref.BroadcastFeaturesT(feat, want))
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestDotMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	mc, ref := New(testConfig()), cpu.New()
	a, b := randomTensor(t, rng, tensor.Shape{5, 6}), randomTensor(t, rng, tensor.Shape{6, 3})
	seed := randomTensor(t, rng, tensor.Shape{5, 3})

	got, want := seed.Clone(), seed.Clone()
	require.NoError(t, mc.DotAddMM(a, b, got))
	require.NoError(t, ref.DotAddMM(a, b, want))
	assertClose(t, got, want)

	require.NoError(t, mc.DotMM(a, b, got))
	require.NoError(t, ref.DotMM(a, b, want))
	assertClose(t, got, want)
}

func TestConvMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	mc, ref := New(testConfig()), cpu.New()
	stride := [2]int{1, 2}
	x := randomTensor(t, rng, tensor.Shape{2, 3, 6, 5})
	w := randomTensor(t, rng, tensor.Shape{4, 3, 3, 2})
	b := randomTensor(t, rng, tensor.Shape{4})
	outShape, err := tensor.Conv2DOutputShape(2, 4, 6, 5, 3, 2, 1, stride)
	require.NoError(t, err)

	got, want := zeros(t, outShape), zeros(t, outShape)
	require.NoError(t, mc.Conv2DForwardBatch(x, w, b, got, 1, stride))
	require.NoError(t, ref.Conv2DForwardBatch(x, w, b, want, 1, stride))
	assertClose(t, got, want)

	oDeltas := randomTensor(t, rng, outShape)
	gi, gw, gb := zeros(t, x.Shape()), zeros(t, w.Shape()), zeros(t, b.Shape())
	wi, ww, wb := zeros(t, x.Shape()), zeros(t, w.Shape()), zeros(t, b.Shape())
	require.NoError(t, mc.Conv2DBackwardBatch(x, w, 1, stride, gi, oDeltas, gw, gb))
	require.NoError(t, ref.Conv2DBackwardBatch(x, w, 1, stride, wi, oDeltas, ww, wb))
	assertClose(t, gi, wi)
	assertClose(t, gw, ww)
	assertClose(t, gb, wb)
}

func TestPoolMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	mc, ref := New(testConfig()), cpu.New()
	x := randomTensor(t, rng, tensor.Shape{2, 3, 6, 9})

	for _, pad := range []int{0, 1, 2} {
		window, strides := [2]int{3, 3}, [2]int{1, 2}
		outShape, err := tensor.Pool2DOutputShape(2, 3, 6, 9, window, pad, strides)
		require.NoError(t, err)

		got, want := zeros(t, outShape), zeros(t, outShape)
		gotIdx, wantIdx := ints(t, outShape.Concat(2)), ints(t, outShape.Concat(2))
		require.NoError(t, mc.Pool2DForwardBatch(x, window, got, pad, strides, gotIdx))
		require.NoError(t, ref.Pool2DForwardBatch(x, window, want, pad, strides, wantIdx))
		assert.Equal(t, want.AsFloat32(), got.AsFloat32())
		assert.Equal(t, wantIdx.AsInt32(), gotIdx.AsInt32())

		oDeltas := randomTensor(t, rng, outShape)
		gi, wi := zeros(t, x.Shape()), zeros(t, x.Shape())
		require.NoError(t, mc.Pool2DBackwardBatch(x, window, got, pad, strides, gotIdx, gi, oDeltas))
		require.NoError(t, ref.Pool2DBackwardBatch(x, window, want, pad, strides, wantIdx, wi, oDeltas))
		assertClose(t, gi, wi)
	}
}

func TestPoolTieBreak(t *testing.T) {
	mc := New(testConfig())

	tests := []struct {
		name   string
		values []float32
		want   []int32
	}{
		{"top row tie", []float32{5, 5, 1, 2}, []int32{0, 0}},
		{"all equal", []float32{3, 3, 3, 3}, []int32{0, 0}},
		{"column tie", []float32{1, 7, 2, 7}, []int32{0, 1}},
		{"later rows only", []float32{1, 2, 4, 4}, []int32{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := zeros(t, tensor.Shape{1, 1, 2, 2})
			copy(x.AsFloat32(), tt.values)
			out := zeros(t, tensor.Shape{1, 1, 1, 1})
			argmax := ints(t, tensor.Shape{1, 1, 1, 1, 2})

			require.NoError(t, mc.Pool2DForwardBatch(x, [2]int{2, 2}, out, 0, [2]int{1, 1}, argmax))
			assert.Equal(t, tt.want, argmax.AsInt32())
		})
	}
}

func TestPoolBackwardRejectsCorruptArgmax(t *testing.T) {
	x := zeros(t, tensor.Shape{1, 2, 3, 3})
	out := zeros(t, tensor.Shape{1, 2, 2, 2})
	oDeltas := zeros(t, out.Shape())

	handlers := map[string]tensor.Handler{
		"multicore": New(testConfig()),
		"cpu":       cpu.New(),
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			argmax := ints(t, tensor.Shape{1, 2, 2, 2, 2})
			require.NoError(t, h.Pool2DForwardBatch(x, [2]int{2, 2}, out, 1, [2]int{2, 2}, argmax))
			require.NoError(t, h.Fill(oDeltas, 1))
			// Row 4 is past the padded input for the second channel's
			// lower-left cell.
			argmax.AsInt32()[12], argmax.AsInt32()[13] = 4, 1

			iDeltas := zeros(t, x.Shape())
			require.NoError(t, h.Fill(iDeltas, 3))
			err := h.Pool2DBackwardBatch(x, [2]int{2, 2}, out, 1, [2]int{2, 2}, argmax, iDeltas, oDeltas)
			assert.ErrorIs(t, err, tensor.ErrInvalidParameter)
			for _, v := range iDeltas.AsFloat32() {
				require.Equal(t, float32(3), v, "no write after a failed call")
			}
		})
	}
}

func TestRelPropagatesNaN(t *testing.T) {
	mc := New(testConfig())
	x := zeros(t, tensor.Shape{4})
	copy(x.AsFloat32(), []float32{math32.NaN(), -1, 2, math32.Inf(-1)})
	y := zeros(t, x.Shape())
	require.NoError(t, mc.Rel(x, y))

	got := y.AsFloat32()
	assert.True(t, math32.IsNaN(got[0]), "got %v", got[0])
	assert.Equal(t, []float32{0, 2, 0}, got[1:])
}

func TestActivationsMatchReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	mc, ref := New(testConfig()), cpu.New()
	shape := tensor.Shape{4, 3}
	x, dy := randomTensor(t, rng, shape), randomTensor(t, rng, shape)

	type pair struct {
		fwd   [2]func(x, y *tensor.RawTensor) error
		deriv [2]func(x, y, dy, dx *tensor.RawTensor) error
	}
	for name, p := range map[string]pair{
		"sigmoid": {[2]func(x, y *tensor.RawTensor) error{mc.Sigmoid, ref.Sigmoid}, [2]func(x, y, dy, dx *tensor.RawTensor) error{mc.SigmoidDeriv, ref.SigmoidDeriv}},
		"tanh":    {[2]func(x, y *tensor.RawTensor) error{mc.Tanh, ref.Tanh}, [2]func(x, y, dy, dx *tensor.RawTensor) error{mc.TanhDeriv, ref.TanhDeriv}},
		"rel":     {[2]func(x, y *tensor.RawTensor) error{mc.Rel, ref.Rel}, [2]func(x, y, dy, dx *tensor.RawTensor) error{mc.RelDeriv, ref.RelDeriv}},
	} {
		t.Run(name, func(t *testing.T) {
			gy, wy := zeros(t, shape), zeros(t, shape)
			require.NoError(t, p.fwd[0](x, gy))
			require.NoError(t, p.fwd[1](x, wy))
			assertClose(t, gy, wy)

			gdx, wdx := zeros(t, shape), zeros(t, shape)
			require.NoError(t, p.deriv[0](x, wy, dy, gdx))
			require.NoError(t, p.deriv[1](x, wy, dy, wdx))
			assertClose(t, gdx, wdx)
		})
	}
}

func TestScatterIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	mc := New(testConfig())
	x := randomTensor(t, rng, tensor.Shape{2, 2, 8, 8})
	w := randomTensor(t, rng, tensor.Shape{3, 2, 3, 3})
	oDeltas := randomTensor(t, rng, tensor.Shape{2, 3, 8, 8})

	var first []float32
	for run := 0; run < 5; run++ {
		iDeltas := zeros(t, x.Shape())
		require.NoError(t, mc.Conv2DBackwardBatch(x, w, 1, [2]int{1, 1},
			iDeltas, oDeltas, zeros(t, w.Shape()), zeros(t, tensor.Shape{3})))
		if first == nil {
			first = append([]float32(nil), iDeltas.AsFloat32()...)
			continue
		}
		// Bitwise equality, not tolerance.
		require.Equal(t, first, iDeltas.AsFloat32(), "run %d", run)
	}
}

func TestScratchLimitReturnsOutOfMemory(t *testing.T) {
	cfg := testConfig()
	cfg.ScratchLimit = 64
	mc := New(cfg)

	x := zeros(t, tensor.Shape{1, 1, 6, 6})
	out := zeros(t, tensor.Shape{1, 1, 5, 5})
	argmax := ints(t, tensor.Shape{1, 1, 5, 5, 2})
	require.NoError(t, mc.Pool2DForwardBatch(x, [2]int{2, 2}, out, 0, [2]int{1, 1}, argmax))

	iDeltas := zeros(t, x.Shape())
	require.NoError(t, mc.Fill(iDeltas, 3))
	err := mc.Pool2DBackwardBatch(x, [2]int{2, 2}, out, 0, [2]int{1, 1}, argmax, iDeltas, zeros(t, out.Shape()))
	assert.ErrorIs(t, err, tensor.ErrOutOfMemory)
	for _, v := range iDeltas.AsFloat32() {
		require.Equal(t, float32(3), v, "no write after a failed call")
	}

	// Sequential execution needs no scratch.
	cfg.Parallel.Enabled = false
	require.NoError(t, New(cfg).Pool2DBackwardBatch(x, [2]int{2, 2}, out, 0, [2]int{1, 1}, argmax, iDeltas, zeros(t, out.Shape())))
}

func TestFillCopyAndTransfer(t *testing.T) {
	mc := New(testConfig())
	a := zeros(t, tensor.Shape{10})
	require.NoError(t, mc.Fill(a, 2))

	b := zeros(t, tensor.Shape{10})
	require.NoError(t, mc.CopyTo(a, b))
	assert.Equal(t, a.AsFloat32(), b.AsFloat32())

	host, err := mc.ToHost(b)
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, host.Device())
	assert.Equal(t, "Multicore", mc.Name())
	assert.NoError(t, mc.Sync())
}
