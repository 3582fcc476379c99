package multicore

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// Sigmoid computes y = 1 / (1 + exp(-x)).
func (mc *Backend) Sigmoid(x, y *tensor.RawTensor) error {
	return mc.unary("sigmoid", x, y, func(v float32) float32 {
		return 1 / (1 + math32.Exp(-v))
	})
}

// Tanh computes y = tanh(x).
func (mc *Backend) Tanh(x, y *tensor.RawTensor) error {
	return mc.unary("tanh", x, y, math32.Tanh)
}

// Rel computes y = max(x, 0). NaN inputs stay NaN.
func (mc *Backend) Rel(x, y *tensor.RawTensor) error {
	return mc.unary("rel", x, y, func(v float32) float32 {
		return max(v, 0)
	})
}

// SigmoidDeriv computes dx = dy * y * (1 - y).
func (mc *Backend) SigmoidDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return mc.derivative("sigmoid_deriv", x, y, dy, dx, func(yv, g float32) float32 {
		return g * yv * (1 - yv)
	})
}

// TanhDeriv computes dx = dy * (1 - y²).
func (mc *Backend) TanhDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return mc.derivative("tanh_deriv", x, y, dy, dx, func(yv, g float32) float32 {
		return g * (1 - yv*yv)
	})
}

// RelDeriv computes dx = dy where y > 0, else 0.
func (mc *Backend) RelDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return mc.derivative("rel_deriv", x, y, dy, dx, func(yv, g float32) float32 {
		if yv > 0 {
			return g
		}
		return 0
	})
}

func (mc *Backend) derivative(op string, x, y, dy, dx *tensor.RawTensor, f func(yv, g float32) float32) error {
	if err := tensor.CheckActivationDeriv(op, mc.device, x, y, dy, dx); err != nil {
		return err
	}
	yData, dyData, dxData := y.AsFloat32(), dy.AsFloat32(), dx.AsFloat32()
	parallel.ForRange(len(dxData), mc.cfg, func(_ int, r parallel.Range) {
		for i := r.Lo; i < r.Hi; i++ {
			dxData[i] = f(yData[i], dyData[i])
		}
	})
	return nil
}
