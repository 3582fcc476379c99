package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/handler/internal/tensor"
)

// TestConv2D_BasicForward tests a valid convolution with a diagonal kernel.
func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := sequence(t, tensor.Shape{1, 1, 3, 3})
	kernel := fromValues(t, tensor.Shape{1, 1, 2, 2}, 1, 0, 0, 1)
	bias := fromValues(t, tensor.Shape{1}, 0.5)
	output := zeros(t, tensor.Shape{1, 1, 2, 2})

	require.NoError(t, backend.Conv2DForwardBatch(input, kernel, bias, output, 0, [2]int{1, 1}))

	// Diagonal sums plus bias: 1+5, 2+6, 4+8, 5+9
	assert.Equal(t, []float32{6.5, 8.5, 12.5, 14.5}, output.AsFloat32())
}

// TestConv2D_WithPadding tests that padding reads as zero.
func TestConv2D_WithPadding(t *testing.T) {
	backend := New()

	input := zeros(t, tensor.Shape{1, 1, 3, 3})
	kernel := zeros(t, tensor.Shape{1, 1, 3, 3})
	require.NoError(t, backend.Fill(input, 1))
	require.NoError(t, backend.Fill(kernel, 1))
	output := zeros(t, tensor.Shape{1, 1, 3, 3})

	require.NoError(t, backend.Conv2DForwardBatch(input, kernel, zeros(t, tensor.Shape{1}), output, 1, [2]int{1, 1}))

	// Corners see 4 ones, edges 6, the center 9.
	assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, output.AsFloat32())
}

// TestConv2D_ShapeLaw checks the output shape on the conv grid.
func TestConv2D_ShapeLaw(t *testing.T) {
	backend := New()
	for _, tc := range []struct {
		x, w tensor.Shape
		pad  int
	}{
		{tensor.Shape{1, 1, 3, 3}, tensor.Shape{1, 1, 1, 1}, 1},
		{tensor.Shape{2, 3, 8, 8}, tensor.Shape{3, 3, 3, 3}, 1},
		{tensor.Shape{2, 10, 6, 4}, tensor.Shape{6, 10, 4, 5}, 1},
		{tensor.Shape{1, 2, 3, 4}, tensor.Shape{2, 2, 5, 3}, 1},
	} {
		t.Run(tc.x.String()+"*"+tc.w.String(), func(t *testing.T) {
			outShape, err := tensor.Conv2DOutputShape(tc.x[0], tc.w[0], tc.x[2], tc.x[3], tc.w[2], tc.w[3], tc.pad, [2]int{1, 1})
			require.NoError(t, err)
			assert.Equal(t, tc.x[2]+2*tc.pad-tc.w[2]+1, outShape[2])
			assert.Equal(t, tc.x[3]+2*tc.pad-tc.w[3]+1, outShape[3])

			err = backend.Conv2DForwardBatch(sequence(t, tc.x), sequence(t, tc.w), zeros(t, tensor.Shape{tc.w[0]}),
				zeros(t, outShape), tc.pad, [2]int{1, 1})
			assert.NoError(t, err)
		})
	}
}

// TestConv2D_Strided tests a non-square stride.
func TestConv2D_Strided(t *testing.T) {
	backend := New()
	input := sequence(t, tensor.Shape{1, 1, 4, 4})
	kernel := fromValues(t, tensor.Shape{1, 1, 1, 1}, 1)
	output := zeros(t, tensor.Shape{1, 1, 2, 4})

	require.NoError(t, backend.Conv2DForwardBatch(input, kernel, zeros(t, tensor.Shape{1}), output, 0, [2]int{2, 1}))
	assert.Equal(t, []float32{1, 2, 3, 4, 9, 10, 11, 12}, output.AsFloat32())
}

// TestConv2D_Backward checks all three gradients on a case small enough to
// derive by hand.
func TestConv2D_Backward(t *testing.T) {
	backend := New()

	x := sequence(t, tensor.Shape{1, 1, 3, 3})
	w := fromValues(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	oDeltas := fromValues(t, tensor.Shape{1, 1, 2, 2}, 1, 1, 1, 1)

	iDeltas := fromValues(t, tensor.Shape{1, 1, 3, 3}, 9, 9, 9, 9, 9, 9, 9, 9, 9)
	wDeltas := fromValues(t, tensor.Shape{1, 1, 2, 2}, 9, 9, 9, 9)
	bDeltas := fromValues(t, tensor.Shape{1}, 9)

	require.NoError(t, backend.Conv2DBackwardBatch(x, w, 0, [2]int{1, 1}, iDeltas, oDeltas, wDeltas, bDeltas))

	// Each input collects the kernel taps that touched it.
	assert.Equal(t, []float32{1, 3, 2, 4, 10, 6, 3, 7, 4}, iDeltas.AsFloat32())
	// Each weight sums the 2x2 block of x it slid over.
	assert.Equal(t, []float32{12, 16, 24, 28}, wDeltas.AsFloat32())
	assert.Equal(t, []float32{4}, bDeltas.AsFloat32())
}

// TestConv2D_BackwardMatchesFiniteDifference checks the kernel gradient
// against a finite difference of the forward pass.
func TestConv2D_BackwardMatchesFiniteDifference(t *testing.T) {
	backend := New()
	x := sequence(t, tensor.Shape{1, 2, 4, 3})
	w := fromValues(t, tensor.Shape{1, 2, 2, 2}, 0.1, -0.2, 0.3, 0.4, -0.5, 0.6, 0.7, -0.8)
	b := zeros(t, tensor.Shape{1})
	stride := [2]int{1, 2}
	outShape, err := tensor.Conv2DOutputShape(1, 1, 4, 3, 2, 2, 1, stride)
	require.NoError(t, err)

	// Loss = sum(out), so oDeltas is all ones.
	oDeltas := zeros(t, outShape)
	require.NoError(t, backend.Fill(oDeltas, 1))
	iDeltas, wDeltas, bDeltas := zeros(t, x.Shape()), zeros(t, w.Shape()), zeros(t, tensor.Shape{1})
	require.NoError(t, backend.Conv2DBackwardBatch(x, w, 1, stride, iDeltas, oDeltas, wDeltas, bDeltas))

	loss := func() float32 {
		out := zeros(t, outShape)
		require.NoError(t, backend.Conv2DForwardBatch(x, w, b, out, 1, stride))
		sum := float32(0)
		for _, v := range out.AsFloat32() {
			sum += v
		}
		return sum
	}

	// The loss is linear in w.
	const eps = 0.5
	for i := range w.AsFloat32() {
		orig := w.AsFloat32()[i]
		w.AsFloat32()[i] = orig + eps
		up := loss()
		w.AsFloat32()[i] = orig - eps
		down := loss()
		w.AsFloat32()[i] = orig
		assert.InDelta(t, (up-down)/(2*eps), wDeltas.AsFloat32()[i], 1e-2, "w[%d]", i)
	}
	assert.Equal(t, float32(outShape.NumElements()), bDeltas.AsFloat32()[0])
}

func TestConv2D_InvalidParameters(t *testing.T) {
	backend := New()
	x := zeros(t, tensor.Shape{1, 1, 3, 3})
	w := zeros(t, tensor.Shape{1, 1, 3, 3})
	b := zeros(t, tensor.Shape{1})

	err := backend.Conv2DForwardBatch(x, w, b, zeros(t, tensor.Shape{1, 1, 1, 1}), 0, [2]int{0, 1})
	assert.ErrorIs(t, err, tensor.ErrInvalidParameter)

	err = backend.Conv2DForwardBatch(x, w, b, zeros(t, tensor.Shape{1, 1, 1, 1}), -1, [2]int{1, 1})
	assert.ErrorIs(t, err, tensor.ErrInvalidParameter)

	err = backend.Conv2DForwardBatch(x, w, b, zeros(t, tensor.Shape{1, 1, 2, 2}), 0, [2]int{1, 1})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
