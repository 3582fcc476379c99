package cpu

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/handler/internal/tensor"
)

// Sigmoid computes y = 1 / (1 + exp(-x)).
func (cpu *CPUBackend) Sigmoid(x, y *tensor.RawTensor) error {
	return cpu.activation("sigmoid", x, y, func(v float32) float32 {
		return 1 / (1 + math32.Exp(-v))
	})
}

// Tanh computes y = tanh(x).
func (cpu *CPUBackend) Tanh(x, y *tensor.RawTensor) error {
	return cpu.activation("tanh", x, y, math32.Tanh)
}

// Rel computes the rectifier y = max(x, 0). NaN inputs stay NaN.
func (cpu *CPUBackend) Rel(x, y *tensor.RawTensor) error {
	return cpu.activation("rel", x, y, func(v float32) float32 {
		return max(v, 0)
	})
}

// SigmoidDeriv computes dx = dy * y * (1 - y).
func (cpu *CPUBackend) SigmoidDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return cpu.derivative("sigmoid_deriv", x, y, dy, dx, func(yv, g float32) float32 {
		return g * yv * (1 - yv)
	})
}

// TanhDeriv computes dx = dy * (1 - y²).
func (cpu *CPUBackend) TanhDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return cpu.derivative("tanh_deriv", x, y, dy, dx, func(yv, g float32) float32 {
		return g * (1 - yv*yv)
	})
}

// RelDeriv passes dy through where y > 0 and writes 0 elsewhere.
func (cpu *CPUBackend) RelDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return cpu.derivative("rel_deriv", x, y, dy, dx, func(yv, g float32) float32 {
		if yv > 0 {
			return g
		}
		return 0
	})
}

func (cpu *CPUBackend) activation(op string, x, y *tensor.RawTensor, f func(float32) float32) error {
	if err := tensor.CheckActivation(op, cpu.device, x, y); err != nil {
		return err
	}
	src, dst := x.AsFloat32(), y.AsFloat32()
	for i, v := range src {
		dst[i] = f(v)
	}
	return nil
}

// derivative applies f(y, dy). x is validated but never read.
func (cpu *CPUBackend) derivative(op string, x, y, dy, dx *tensor.RawTensor, f func(yv, g float32) float32) error {
	if err := tensor.CheckActivationDeriv(op, cpu.device, x, y, dy, dx); err != nil {
		return err
	}
	yData, dyData, dxData := y.AsFloat32(), dy.AsFloat32(), dx.AsFloat32()
	for i, yv := range yData {
		dxData[i] = f(yv, dyData[i])
	}
	return nil
}
