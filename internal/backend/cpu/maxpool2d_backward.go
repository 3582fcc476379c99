package cpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// Pool2DBackwardBatch routes output gradients to the positions recorded in
// argmax by the forward pass.
//
// iDeltas is zeroed first; when windows overlap, contributions landing on the
// same input position are summed. Cells whose argmax is (-1, -1) contribute
// nothing.
//
// Example (2x2 window, stride=2):
//
//	Input:  [[1, 2],  Output: [4]  Input Grad: [[0, 0],
//	         [3, 4]]                             [0, grad]]
//
// References:
//   - Burn framework: crates/burn-autodiff/src/ops/module.rs (max_pool2d_backward)
//   - CS231n: Backprop for pooling layers
func (cpu *CPUBackend) Pool2DBackwardBatch(x *tensor.RawTensor, window [2]int, out *tensor.RawTensor, pad int,
	strides [2]int, argmax, iDeltas, oDeltas *tensor.RawTensor,
) error {
	g, err := tensor.CheckPool2DBackward(cpu.device, x, window, out, pad, strides, argmax, iDeltas, oDeltas)
	if err != nil {
		return err
	}
	maxPool2DBackwardFloat32(iDeltas.AsFloat32(), oDeltas.AsFloat32(), argmax.AsInt32(), g)
	return nil
}

func maxPool2DBackwardFloat32(inputGradData, gradData []float32, argmaxData []int32, g tensor.Pool2DGeometry) {
	for i := range inputGradData {
		inputGradData[i] = 0.0
	}

	plane := g.OH * g.OW
	for nc := 0; nc < g.N*g.C; nc++ {
		inputGradPlane := inputGradData[nc*g.H*g.W : (nc+1)*g.H*g.W]
		for p := 0; p < plane; p++ {
			outIdx := nc*plane + p
			row, col := int(argmaxData[2*outIdx]), int(argmaxData[2*outIdx+1])
			if row < 0 {
				continue
			}
			inputGradPlane[(row-g.Pad)*g.W+(col-g.Pad)] += gradData[outIdx]
		}
	}
}
