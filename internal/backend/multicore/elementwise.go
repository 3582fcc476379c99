package multicore

import (
	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// AddTT computes out = a + b elementwise.
func (mc *Backend) AddTT(a, b, out *tensor.RawTensor) error {
	return mc.binary("add_tt", a, b, out, func(x, y float32) float32 { return x + y })
}

// SubtractTT computes out = a - b elementwise.
func (mc *Backend) SubtractTT(a, b, out *tensor.RawTensor) error {
	return mc.binary("subtract_tt", a, b, out, func(x, y float32) float32 { return x - y })
}

// MultTT computes out = a * b elementwise.
func (mc *Backend) MultTT(a, b, out *tensor.RawTensor) error {
	return mc.binary("mult_tt", a, b, out, func(x, y float32) float32 { return x * y })
}

// DivideTT computes out = a / b elementwise.
func (mc *Backend) DivideTT(a, b, out *tensor.RawTensor) error {
	return mc.binary("divide_tt", a, b, out, func(x, y float32) float32 { return x / y })
}

// MultAddTT accumulates out += a * b elementwise.
func (mc *Backend) MultAddTT(a, b, out *tensor.RawTensor) error {
	return mc.binary("mult_add_tt", a, b, out, nil)
}

// binary applies f over chunks of the flat index space. A nil f means
// multiply-accumulate into out.
func (mc *Backend) binary(op string, a, b, out *tensor.RawTensor, f func(x, y float32) float32) error {
	if err := tensor.CheckElementwise(op, mc.device, a, b, out); err != nil {
		return err
	}
	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	parallel.ForRange(len(outData), mc.cfg, func(_ int, r parallel.Range) {
		if f == nil {
			for i := r.Lo; i < r.Hi; i++ {
				outData[i] += aData[i] * bData[i]
			}
			return
		}
		for i := r.Lo; i < r.Hi; i++ {
			outData[i] = f(aData[i], bData[i])
		}
	})
	return nil
}

// AddST computes out = s + b.
func (mc *Backend) AddST(s float32, b, out *tensor.RawTensor) error {
	return mc.unary("add_st", b, out, func(x float32) float32 { return s + x })
}

// MultST computes out = s * b.
func (mc *Backend) MultST(s float32, b, out *tensor.RawTensor) error {
	return mc.unary("mult_st", b, out, func(x float32) float32 { return s * x })
}

// unary validates (in, out) and applies f chunk by chunk.
func (mc *Backend) unary(op string, in, out *tensor.RawTensor, f func(x float32) float32) error {
	if err := tensor.CheckElementwise(op, mc.device, in, out); err != nil {
		return err
	}
	src, dst := in.AsFloat32(), out.AsFloat32()
	parallel.ForRange(len(dst), mc.cfg, func(_ int, r parallel.Range) {
		for i := r.Lo; i < r.Hi; i++ {
			dst[i] = f(src[i])
		}
	})
	return nil
}

// AddMV computes out = m + v.
func (mc *Backend) AddMV(m, v, out *tensor.RawTensor) error {
	return mc.matrixVector("add_mv", m, v, out, func(x, y float32) float32 { return x + y })
}

// MultMV computes out = m * v.
func (mc *Backend) MultMV(m, v, out *tensor.RawTensor) error {
	return mc.matrixVector("mult_mv", m, v, out, func(x, y float32) float32 { return x * y })
}

// DivideMV computes out = m / v.
func (mc *Backend) DivideMV(m, v, out *tensor.RawTensor) error {
	return mc.matrixVector("divide_mv", m, v, out, func(x, y float32) float32 { return x / y })
}

// matrixVector assigns whole rows to workers.
func (mc *Backend) matrixVector(op string, m, v, out *tensor.RawTensor, f func(x, y float32) float32) error {
	rowWise, err := tensor.CheckMV(op, mc.device, m, v, out)
	if err != nil {
		return err
	}
	rows, cols := m.Shape()[0], m.Shape()[1]
	mData, vData, outData := m.AsFloat32(), v.AsFloat32(), out.AsFloat32()

	mc.forEach(rows, func(i int) {
		mRow := mData[i*cols : (i+1)*cols]
		outRow := outData[i*cols : (i+1)*cols]
		for j, x := range mRow {
			if rowWise {
				outRow[j] = f(x, vData[j])
			} else {
				outRow[j] = f(x, vData[i])
			}
		}
	})
	return nil
}
