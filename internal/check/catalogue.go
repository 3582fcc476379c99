package check

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/handler/internal/backend/cpu"
	"github.com/born-ml/handler/internal/tensor"
)

// Role says how a case argument takes part in the comparison.
type Role int

const (
	// Input arguments are read by the operation.
	Input Role = iota
	// Output arguments are written by the operation and compared.
	Output
)

// Arg is one tensor argument of a case, held on the host.
type Arg struct {
	Name string
	Role Role
	Host *tensor.RawTensor
}

// Case is one operation call with fixed arguments.
type Case struct {
	Op   string
	Name string
	Args []Arg

	// Call runs the operation on h. args holds the case arguments in h's
	// memory space, in the order of Args.
	Call func(h tensor.Handler, args []*tensor.RawTensor) error

	// Oracle, when set, computes the first output in float64 from the host
	// arguments.
	Oracle func(args []Arg) []float64
}

// Options selects and sizes the catalogue.
type Options struct {
	Seed  int64
	Only  []string // operation names; empty selects every operation
	Quick bool     // shrink the batch and spatial sizes of the image grids
}

var (
	shapes2D = []tensor.Shape{{1, 1}, {4, 1}, {1, 4}, {5, 5}, {3, 4}, {4, 3}}
	shapesND = []tensor.Shape{{1, 1, 4}, {1, 1, 3, 3}, {3, 4, 2, 1}}
)

type entry struct {
	op    string
	build func(b *builder, op string) error
}

// catalogue lists the operations in run order.
var catalogue = []entry{
	{"add_tt", buildBinary(tensor.Handler.AddTT, false)},
	{"subtract_tt", buildBinary(tensor.Handler.SubtractTT, false)},
	{"mult_tt", buildBinary(tensor.Handler.MultTT, false)},
	{"divide_tt", buildBinary(tensor.Handler.DivideTT, false)},
	{"mult_add_tt", buildBinary(tensor.Handler.MultAddTT, true)},
	{"add_st", buildScalar(tensor.Handler.AddST)},
	{"mult_st", buildScalar(tensor.Handler.MultST)},
	{"add_mv", buildMV(tensor.Handler.AddMV)},
	{"mult_mv", buildMV(tensor.Handler.MultMV)},
	{"divide_mv", buildMV(tensor.Handler.DivideMV)},
	{"broadcast_features_t", buildBroadcastFeatures},
	{"sum_t", buildSum},
	{"clip_t", buildClip},
	{"log_t", buildUnary(tensor.Handler.LogT, 10)},
	{"dot_mm", buildDot(tensor.Handler.DotMM, false)},
	{"dot_add_mm", buildDot(tensor.Handler.DotAddMM, true)},
	{"sigmoid", buildUnary(tensor.Handler.Sigmoid, 0)},
	{"tanh", buildUnary(tensor.Handler.Tanh, 0)},
	{"rel", buildUnary(tensor.Handler.Rel, 0)},
	{"sigmoid_deriv", buildDeriv(tensor.Handler.SigmoidDeriv)},
	{"tanh_deriv", buildDeriv(tensor.Handler.TanhDeriv)},
	{"rel_deriv", buildDeriv(tensor.Handler.RelDeriv)},
	{"conv2d_forward_batch", buildConvForward},
	{"conv2d_backward_batch", buildConvBackward},
	{"pool2d_forward_batch", buildPoolForward},
	{"pool2d_backward_batch", buildPoolBackward},
}

// Ops returns the operation names in catalogue order.
func Ops() []string {
	ops := make([]string, len(catalogue))
	for i, e := range catalogue {
		ops[i] = e.op
	}
	return ops
}

// Catalogue builds the cases selected by opts. The same options always
// produce the same arguments.
func Catalogue(opts Options) ([]Case, error) {
	for _, op := range opts.Only {
		if !slices.Contains(Ops(), op) {
			return nil, errors.Wrapf(tensor.ErrInvalidParameter, "check: unknown operation %q", op)
		}
	}
	b := &builder{rng: rand.New(rand.NewSource(opts.Seed)), quick: opts.Quick}
	for _, e := range catalogue {
		if len(opts.Only) > 0 && !slices.Contains(opts.Only, e.op) {
			continue
		}
		if err := e.build(b, e.op); err != nil {
			return nil, errors.Wrapf(err, "check: building %s cases", e.op)
		}
	}
	return b.cases, nil
}

type builder struct {
	rng   *rand.Rand
	quick bool
	cases []Case
}

func (b *builder) filled(shape tensor.Shape, gen func() float64) (*tensor.RawTensor, error) {
	t, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, err
	}
	data := t.AsFloat32()
	for i := range data {
		data[i] = float32(gen())
	}
	return t, nil
}

func (b *builder) randn(shape tensor.Shape) (*tensor.RawTensor, error) {
	return b.filled(shape, b.rng.NormFloat64)
}

func (b *builder) uniform(shape tensor.Shape) (*tensor.RawTensor, error) {
	return b.filled(shape, b.rng.Float64)
}

func zeros(shape tensor.Shape) (*tensor.RawTensor, error) {
	return tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
}

// must collects tensor constructors, keeping the first error.
type must struct{ err error }

func (m *must) t(t *tensor.RawTensor, err error) *tensor.RawTensor {
	if m.err == nil && err != nil {
		m.err = err
	}
	return t
}

func in(name string, t *tensor.RawTensor) Arg  { return Arg{Name: name, Role: Input, Host: t} }
func out(name string, t *tensor.RawTensor) Arg { return Arg{Name: name, Role: Output, Host: t} }

// images returns the spatial grid; quick mode keeps every layout but
// shrinks the batch and the large planes.
func (b *builder) images(full []tensor.Shape) []tensor.Shape {
	if !b.quick {
		return full
	}
	shrunk := make([]tensor.Shape, len(full))
	for i, s := range full {
		s = s.Clone()
		s[0] = min(s[0], 2)
		s[1] = min(s[1], 4)
		s[2], s[3] = min(s[2], 8), min(s[3], 9)
		shrunk[i] = s
	}
	return shrunk
}

type binaryOp func(h tensor.Handler, a, b, out *tensor.RawTensor) error

func buildBinary(f binaryOp, accumulate bool) func(*builder, string) error {
	return func(b *builder, op string) error {
		for _, shape := range slices.Concat(shapes2D, shapesND) {
			var m must
			x, y := m.t(b.randn(shape)), m.t(b.randn(shape))
			o := m.t(zeros(shape))
			if accumulate {
				o = m.t(b.randn(shape))
			}
			if m.err != nil {
				return m.err
			}
			// Divisors stay away from zero.
			if op == "divide_tt" {
				for i, v := range y.AsFloat32() {
					if v > -0.1 && v < 0.1 {
						y.AsFloat32()[i] = v + 0.5
					}
				}
			}
			b.cases = append(b.cases, Case{
				Op: op, Name: fmt.Sprintf("%s%v", op, shape),
				Args: []Arg{in("a", x), in("b", y), out("out", o)},
				Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return f(h, t[0], t[1], t[2]) },
			})
		}
		return nil
	}
}

type scalarOp func(h tensor.Handler, s float32, b, out *tensor.RawTensor) error

func buildScalar(f scalarOp) func(*builder, string) error {
	return func(b *builder, op string) error {
		for _, s := range []float32{0, 0.5, -1} {
			for _, shape := range slices.Concat(shapes2D, shapesND) {
				var m must
				x, o := m.t(b.randn(shape)), m.t(zeros(shape))
				if m.err != nil {
					return m.err
				}
				b.cases = append(b.cases, Case{
					Op: op, Name: fmt.Sprintf("%s%v/s=%v", op, shape, s),
					Args: []Arg{in("b", x), out("out", o)},
					Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return f(h, s, t[0], t[1]) },
				})
			}
		}
		return nil
	}
}

func buildMV(f binaryOp) func(*builder, string) error {
	return func(b *builder, op string) error {
		for _, shape := range shapes2D {
			for i, vs := range []tensor.Shape{{1, shape[1]}, {shape[0], 1}} {
				if i == 1 && shape[0] == 1 && shape[1] == 1 {
					break // (1, 1) is already covered as a row vector
				}
				var m must
				x, v, o := m.t(b.randn(shape)), m.t(b.uniform(vs)), m.t(zeros(shape))
				if m.err != nil {
					return m.err
				}
				// Uniform in [0.5, 1.5) keeps divide_mv well conditioned.
				for i := range v.AsFloat32() {
					v.AsFloat32()[i] += 0.5
				}
				b.cases = append(b.cases, Case{
					Op: op, Name: fmt.Sprintf("%s%v/v%v", op, shape, vs),
					Args: []Arg{in("m", x), in("v", v), out("out", o)},
					Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return f(h, t[0], t[1], t[2]) },
				})
			}
		}
		return nil
	}
}

func buildBroadcastFeatures(b *builder, op string) error {
	for _, shape := range []tensor.Shape{{1, 1, 1}, {1, 2, 1}, {3, 2, 1}, {4, 1, 1}} {
		for _, extra := range []tensor.Shape{{1}, {2, 2}, {3, 1, 1}} {
			outShape := slices.Concat(shape, extra)
			var m must
			x, o := m.t(b.randn(shape)), m.t(zeros(outShape))
			if m.err != nil {
				return m.err
			}
			b.cases = append(b.cases, Case{
				Op: op, Name: fmt.Sprintf("%s%v->%v", op, shape, outShape),
				Args: []Arg{in("a", x), out("out", o)},
				Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return h.BroadcastFeaturesT(t[0], t[1]) },
			})
		}
	}
	return nil
}

func buildSum(b *builder, op string) error {
	for _, shape := range shapes2D {
		for _, axis := range []int{0, 1, tensor.AllAxes} {
			outShape := tensor.Shape{}
			switch axis {
			case 0:
				outShape = tensor.Shape{1, shape[1]}
			case 1:
				outShape = tensor.Shape{shape[0]}
			}
			var m must
			x, o := m.t(b.randn(shape)), m.t(zeros(outShape))
			if m.err != nil {
				return m.err
			}
			b.cases = append(b.cases, Case{
				Op: op, Name: fmt.Sprintf("%s%v/axis=%d", op, shape, axis),
				Args: []Arg{in("a", x), out("out", o)},
				Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return h.SumT(t[0], axis, t[1]) },
			})
		}
	}
	return nil
}

func buildClip(b *builder, op string) error {
	for _, shape := range shapesND {
		for _, lo := range []float32{-0.4, 0, 0.2} {
			for _, hi := range []float32{-0.1, 0, 0.3} {
				if hi < lo {
					continue
				}
				var m must
				x, o := m.t(b.randn(shape)), m.t(zeros(shape))
				if m.err != nil {
					return m.err
				}
				b.cases = append(b.cases, Case{
					Op: op, Name: fmt.Sprintf("%s%v/[%v,%v]", op, shape, lo, hi),
					Args: []Arg{in("a", x), out("out", o)},
					Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return h.ClipT(t[0], lo, hi, t[1]) },
				})
			}
		}
	}
	return nil
}

type unaryOp func(h tensor.Handler, x, y *tensor.RawTensor) error

// buildUnary shifts inputs by offset; log_t uses it to stay positive.
func buildUnary(f unaryOp, offset float32) func(*builder, string) error {
	return func(b *builder, op string) error {
		for _, shape := range shapesND {
			var m must
			x, y := m.t(b.randn(shape)), m.t(zeros(shape))
			if m.err != nil {
				return m.err
			}
			for i := range x.AsFloat32() {
				x.AsFloat32()[i] += offset
			}
			b.cases = append(b.cases, Case{
				Op: op, Name: fmt.Sprintf("%s%v", op, shape),
				Args: []Arg{in("x", x), out("y", y)},
				Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return f(h, t[0], t[1]) },
			})
		}
		return nil
	}
}

type derivOp func(h tensor.Handler, x, y, dy, dx *tensor.RawTensor) error

func buildDeriv(f derivOp) func(*builder, string) error {
	return func(b *builder, op string) error {
		for _, shape := range shapesND {
			var m must
			x, y, dy, dx := m.t(b.randn(shape)), m.t(b.randn(shape)), m.t(b.randn(shape)), m.t(zeros(shape))
			if m.err != nil {
				return m.err
			}
			b.cases = append(b.cases, Case{
				Op: op, Name: fmt.Sprintf("%s%v", op, shape),
				Args: []Arg{in("x", x), in("y", y), in("dy", dy), out("dx", dx)},
				Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return f(h, t[0], t[1], t[2], t[3]) },
			})
		}
		return nil
	}
}

// buildDot pairs every 2D shape (m, k) with a (k, m) right operand.
func buildDot(f binaryOp, accumulate bool) func(*builder, string) error {
	return func(b *builder, op string) error {
		for _, shape := range shapes2D {
			rows, inner := shape[0], shape[1]
			var m must
			x, y := m.t(b.randn(shape)), m.t(b.randn(tensor.Shape{inner, rows}))
			o := m.t(zeros(tensor.Shape{rows, rows}))
			if accumulate {
				o = m.t(b.randn(tensor.Shape{rows, rows}))
			}
			if m.err != nil {
				return m.err
			}
			b.cases = append(b.cases, Case{
				Op: op, Name: fmt.Sprintf("%s%v@%v", op, shape, y.Shape()),
				Args: []Arg{in("a", x), in("b", y), out("out", o)},
				Call: func(h tensor.Handler, t []*tensor.RawTensor) error { return f(h, t[0], t[1], t[2]) },
				Oracle: func(args []Arg) []float64 {
					var seed *tensor.RawTensor
					if accumulate {
						seed = args[2].Host
					}
					return dotOracle(args[0].Host, args[1].Host, seed)
				},
			})
		}
		return nil
	}
}

var (
	convImages  = []tensor.Shape{{1, 1, 3, 3}, {10, 3, 32, 32}, {10, 10, 6, 4}, {1, 2, 3, 4}}
	convKernels = [][3]int{{1, 1, 1}, {3, 3, 3}, {6, 4, 5}, {2, 5, 3}} // (cout, kh, kw)
	convStrides = [][2]int{{1, 1}, {2, 1}}
)

const convPad = 1

type convCase struct {
	name   string
	x, w   *tensor.RawTensor
	stride [2]int
	out    tensor.Shape
}

func (b *builder) convCases(op string) ([]convCase, error) {
	var cases []convCase
	for _, k := range convKernels {
		for _, xs := range b.images(convImages) {
			for _, stride := range convStrides {
				outShape, err := tensor.Conv2DOutputShape(xs[0], k[0], xs[2], xs[3], k[1], k[2], convPad, stride)
				if err != nil {
					continue // kernel does not fit this image
				}
				var m must
				x := m.t(b.randn(xs))
				w := m.t(b.uniform(tensor.Shape{k[0], xs[1], k[1], k[2]}))
				if m.err != nil {
					return nil, m.err
				}
				cases = append(cases, convCase{
					name:   fmt.Sprintf("%s%v*%v/stride=%v", op, xs, w.Shape(), stride),
					x:      x,
					w:      w,
					stride: stride,
					out:    outShape,
				})
			}
		}
	}
	return cases, nil
}

func buildConvForward(b *builder, op string) error {
	cs, err := b.convCases(op)
	if err != nil {
		return err
	}
	for _, c := range cs {
		var m must
		bias, o := m.t(b.uniform(tensor.Shape{c.w.Shape()[0]})), m.t(zeros(c.out))
		if m.err != nil {
			return m.err
		}
		b.cases = append(b.cases, Case{
			Op: op, Name: c.name,
			Args: []Arg{in("x", c.x), in("w", c.w), in("b", bias), out("out", o)},
			Call: func(h tensor.Handler, t []*tensor.RawTensor) error {
				return h.Conv2DForwardBatch(t[0], t[1], t[2], t[3], convPad, c.stride)
			},
		})
	}
	return nil
}

func buildConvBackward(b *builder, op string) error {
	cs, err := b.convCases(op)
	if err != nil {
		return err
	}
	for _, c := range cs {
		var m must
		grad := m.t(b.uniform(c.out))
		iDeltas, wDeltas := m.t(zeros(c.x.Shape())), m.t(zeros(c.w.Shape()))
		bDeltas := m.t(zeros(tensor.Shape{c.w.Shape()[0]}))
		if m.err != nil {
			return m.err
		}
		b.cases = append(b.cases, Case{
			Op: op, Name: c.name,
			Args: []Arg{
				in("x", c.x), in("w", c.w), out("i_deltas", iDeltas),
				in("o_deltas", grad), out("w_deltas", wDeltas), out("b_deltas", bDeltas),
			},
			Call: func(h tensor.Handler, t []*tensor.RawTensor) error {
				return h.Conv2DBackwardBatch(t[0], t[1], convPad, c.stride, t[2], t[3], t[4], t[5])
			},
		})
	}
	return nil
}

var (
	poolImages  = []tensor.Shape{{1, 1, 5, 5}, {10, 3, 32, 32}, {10, 10, 6, 4}, {1, 2, 6, 9}}
	poolWindows = [][2]int{{2, 2}, {3, 3}, {4, 4}, {2, 1}, {1, 2}}
	poolStrides = [][2]int{{1, 1}, {2, 2}, {1, 2}, {2, 1}}
	poolPads    = []int{0, 1, 2}
)

type poolCase struct {
	name    string
	x       *tensor.RawTensor
	window  [2]int
	pad     int
	strides [2]int
	out     tensor.Shape
}

func (b *builder) poolCases(op string) ([]poolCase, error) {
	var cases []poolCase
	for _, xs := range b.images(poolImages) {
		x, err := b.randn(xs)
		if err != nil {
			return nil, err
		}
		for _, pad := range poolPads {
			for _, strides := range poolStrides {
				for _, window := range poolWindows {
					outShape, err := tensor.Pool2DOutputShape(xs[0], xs[1], xs[2], xs[3], window, pad, strides)
					if err != nil {
						continue
					}
					cases = append(cases, poolCase{
						name:    fmt.Sprintf("%s%v/window=%v/pad=%d/strides=%v", op, xs, window, pad, strides),
						x:       x,
						window:  window,
						pad:     pad,
						strides: strides,
						out:     outShape,
					})
				}
			}
		}
	}
	return cases, nil
}

func buildPoolForward(b *builder, op string) error {
	cs, err := b.poolCases(op)
	if err != nil {
		return err
	}
	for _, c := range cs {
		var m must
		o := m.t(zeros(c.out))
		argmax := m.t(tensor.NewRaw(c.out.Concat(2), tensor.Int32, tensor.CPU))
		if m.err != nil {
			return m.err
		}
		b.cases = append(b.cases, Case{
			Op: op, Name: c.name,
			Args: []Arg{in("x", c.x), out("outputs", o), out("argmax", argmax)},
			Call: func(h tensor.Handler, t []*tensor.RawTensor) error {
				return h.Pool2DForwardBatch(t[0], c.window, t[1], c.pad, c.strides, t[2])
			},
		})
	}
	return nil
}

// buildPoolBackward routes gradients through the argmax of a reference
// forward pass, so both handlers see the same index tensor.
func buildPoolBackward(b *builder, op string) error {
	cs, err := b.poolCases(op)
	if err != nil {
		return err
	}
	ref := cpu.New()
	for _, c := range cs {
		var m must
		o := m.t(zeros(c.out))
		argmax := m.t(tensor.NewRaw(c.out.Concat(2), tensor.Int32, tensor.CPU))
		grad, iDeltas := m.t(b.randn(c.out)), m.t(zeros(c.x.Shape()))
		if m.err != nil {
			return m.err
		}
		if err := ref.Pool2DForwardBatch(c.x, c.window, o, c.pad, c.strides, argmax); err != nil {
			return err
		}
		b.cases = append(b.cases, Case{
			Op: op, Name: c.name,
			Args: []Arg{
				in("x", c.x), in("outputs", o), in("argmax", argmax),
				out("i_deltas", iDeltas), in("o_deltas", grad),
			},
			Call: func(h tensor.Handler, t []*tensor.RawTensor) error {
				return h.Pool2DBackwardBatch(t[0], c.window, t[1], c.pad, c.strides, t[2], t[3], t[4])
			},
		})
	}
	return nil
}
