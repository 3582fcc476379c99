package cpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// AddTT computes out = a + b elementwise.
func (cpu *CPUBackend) AddTT(a, b, out *tensor.RawTensor) error {
	return cpu.binary("add_tt", a, b, out, func(x, y float32) float32 { return x + y })
}

// SubtractTT computes out = a - b elementwise.
func (cpu *CPUBackend) SubtractTT(a, b, out *tensor.RawTensor) error {
	return cpu.binary("subtract_tt", a, b, out, func(x, y float32) float32 { return x - y })
}

// MultTT computes out = a * b elementwise.
func (cpu *CPUBackend) MultTT(a, b, out *tensor.RawTensor) error {
	return cpu.binary("mult_tt", a, b, out, func(x, y float32) float32 { return x * y })
}

// DivideTT computes out = a / b elementwise. Division by zero follows IEEE-754.
func (cpu *CPUBackend) DivideTT(a, b, out *tensor.RawTensor) error {
	return cpu.binary("divide_tt", a, b, out, func(x, y float32) float32 { return x / y })
}

// MultAddTT accumulates out += a * b elementwise.
func (cpu *CPUBackend) MultAddTT(a, b, out *tensor.RawTensor) error {
	if err := tensor.CheckElementwise("mult_add_tt", cpu.device, a, b, out); err != nil {
		return err
	}
	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	for i := range outData {
		outData[i] += aData[i] * bData[i]
	}
	return nil
}

// binary validates identical shapes and applies f pairwise.
func (cpu *CPUBackend) binary(op string, a, b, out *tensor.RawTensor, f func(x, y float32) float32) error {
	if err := tensor.CheckElementwise(op, cpu.device, a, b, out); err != nil {
		return err
	}
	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	for i := range outData {
		outData[i] = f(aData[i], bData[i])
	}
	return nil
}

// AddST computes out = s + b.
func (cpu *CPUBackend) AddST(s float32, b, out *tensor.RawTensor) error {
	if err := tensor.CheckElementwise("add_st", cpu.device, b, out); err != nil {
		return err
	}
	bData, outData := b.AsFloat32(), out.AsFloat32()
	for i := range outData {
		outData[i] = s + bData[i]
	}
	return nil
}

// MultST computes out = s * b.
func (cpu *CPUBackend) MultST(s float32, b, out *tensor.RawTensor) error {
	if err := tensor.CheckElementwise("mult_st", cpu.device, b, out); err != nil {
		return err
	}
	bData, outData := b.AsFloat32(), out.AsFloat32()
	for i := range outData {
		outData[i] = s * bData[i]
	}
	return nil
}

// AddMV computes out = m + v with v broadcast along rows or columns.
func (cpu *CPUBackend) AddMV(m, v, out *tensor.RawTensor) error {
	return cpu.matrixVector("add_mv", m, v, out, func(x, y float32) float32 { return x + y })
}

// MultMV computes out = m * v with v broadcast along rows or columns.
func (cpu *CPUBackend) MultMV(m, v, out *tensor.RawTensor) error {
	return cpu.matrixVector("mult_mv", m, v, out, func(x, y float32) float32 { return x * y })
}

// DivideMV computes out = m / v with v broadcast along rows or columns.
func (cpu *CPUBackend) DivideMV(m, v, out *tensor.RawTensor) error {
	return cpu.matrixVector("divide_mv", m, v, out, func(x, y float32) float32 { return x / y })
}

// matrixVector broadcasts a (1, cols) vector down the rows or a (rows, 1)
// vector across the columns.
func (cpu *CPUBackend) matrixVector(op string, m, v, out *tensor.RawTensor, f func(x, y float32) float32) error {
	rowWise, err := tensor.CheckMV(op, cpu.device, m, v, out)
	if err != nil {
		return err
	}
	rows, cols := m.Shape()[0], m.Shape()[1]
	mData, vData, outData := m.AsFloat32(), v.AsFloat32(), out.AsFloat32()

	for i := 0; i < rows; i++ {
		// Pre-slice rows to keep the inner loop bounds-check free
		mRow := mData[i*cols : (i+1)*cols]
		outRow := outData[i*cols : (i+1)*cols]
		if rowWise {
			for j, x := range mRow {
				outRow[j] = f(x, vData[j])
			}
			continue
		}
		vi := vData[i]
		for j, x := range mRow {
			outRow[j] = f(x, vi)
		}
	}
	return nil
}
