package tensor

import "github.com/pkg/errors"

// The Check* functions enforce the handler contract. Every backend calls them
// before touching an output, so all realizations reject exactly the same
// calls with the same error class.

// Conv2DGeometry holds the dimensions of a validated convolution call.
type Conv2DGeometry struct {
	N, CIn, H, W int // input  [N, CIn, H, W]
	COut, KH, KW int // weight [COut, CIn, KH, KW]
	OH, OW       int // output [N, COut, OH, OW]
	Pad, SH, SW  int
}

// InputShape returns [N, CIn, H, W].
func (g Conv2DGeometry) InputShape() Shape { return Shape{g.N, g.CIn, g.H, g.W} }

// WeightShape returns [COut, CIn, KH, KW].
func (g Conv2DGeometry) WeightShape() Shape { return Shape{g.COut, g.CIn, g.KH, g.KW} }

// OutputShape returns [N, COut, OH, OW].
func (g Conv2DGeometry) OutputShape() Shape { return Shape{g.N, g.COut, g.OH, g.OW} }

// Pool2DGeometry holds the dimensions of a validated pooling call.
type Pool2DGeometry struct {
	N, C, H, W  int // input  [N, C, H, W]
	WH, WW      int // window
	OH, OW      int // output [N, C, OH, OW]
	Pad, SH, SW int
}

// InputShape returns [N, C, H, W].
func (g Pool2DGeometry) InputShape() Shape { return Shape{g.N, g.C, g.H, g.W} }

// OutputShape returns [N, C, OH, OW].
func (g Pool2DGeometry) OutputShape() Shape { return Shape{g.N, g.C, g.OH, g.OW} }

// ArgmaxShape returns [N, C, OH, OW, 2].
func (g Pool2DGeometry) ArgmaxShape() Shape { return Shape{g.N, g.C, g.OH, g.OW, 2} }

// slidingOutput applies out = (in + 2*pad - k)/stride + 1 and reports whether
// the window fits at least once.
func slidingOutput(in, k, pad, stride int) (int, bool) {
	span := in + 2*pad - k
	if span < 0 {
		return 0, false
	}
	return span/stride + 1, true
}

func checkSpatialParams(op string, k [2]int, pad int, stride [2]int) error {
	if stride[0] <= 0 || stride[1] <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "%s: stride must be positive, got %v", op, stride)
	}
	if k[0] <= 0 || k[1] <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "%s: window must be positive, got %v", op, k)
	}
	if pad < 0 {
		return errors.Wrapf(ErrInvalidParameter, "%s: padding must be non-negative, got %d", op, pad)
	}
	return nil
}

// Conv2DOutputShape returns the output shape of a convolution of an
// [n, ?, h, w] batch with cOut kernels of size kh x kw.
func Conv2DOutputShape(n, cOut, h, w, kh, kw, pad int, stride [2]int) (Shape, error) {
	if err := checkSpatialParams("conv2d", [2]int{kh, kw}, pad, stride); err != nil {
		return nil, err
	}
	oh, okH := slidingOutput(h, kh, pad, stride[0])
	ow, okW := slidingOutput(w, kw, pad, stride[1])
	if !okH || !okW {
		return nil, errors.Wrapf(ErrInvalidParameter,
			"conv2d: kernel %dx%d does not fit padded input %dx%d", kh, kw, h+2*pad, w+2*pad)
	}
	return Shape{n, cOut, oh, ow}, nil
}

// Pool2DOutputShape returns the output shape of pooling an [n, c, h, w]
// batch. It uses the same floor-division law as Conv2DOutputShape.
func Pool2DOutputShape(n, c, h, w int, window [2]int, pad int, strides [2]int) (Shape, error) {
	if err := checkSpatialParams("pool2d", window, pad, strides); err != nil {
		return nil, err
	}
	oh, okH := slidingOutput(h, window[0], pad, strides[0])
	ow, okW := slidingOutput(w, window[1], pad, strides[1])
	if !okH || !okW {
		return nil, errors.Wrapf(ErrInvalidParameter,
			"pool2d: window %v does not fit padded input %dx%d", window, h+2*pad, w+2*pad)
	}
	return Shape{n, c, oh, ow}, nil
}

func checkPresent(op string, ts ...*RawTensor) error {
	for i, t := range ts {
		if t == nil {
			return errors.Wrapf(ErrInvalidParameter, "%s: tensor argument %d is nil", op, i)
		}
	}
	return nil
}

func checkDevice(op string, dev Device, ts ...*RawTensor) error {
	for _, t := range ts {
		if t.Device() != dev {
			return errors.Wrapf(ErrDeviceMismatch, "%s: tensor on %s, handler on %s", op, t.Device(), dev)
		}
	}
	return nil
}

func checkDType(op string, dt DataType, ts ...*RawTensor) error {
	for _, t := range ts {
		if t.DType() != dt {
			return errors.Wrapf(ErrDTypeMismatch, "%s: expected %s, got %s", op, dt, t.DType())
		}
	}
	return nil
}

func checkShape(op, name string, t *RawTensor, want Shape) error {
	if !t.Shape().Equal(want) {
		return errors.Wrapf(ErrShapeMismatch, "%s: %s has shape %v, want %v", op, name, t.Shape(), want)
	}
	return nil
}

func checkRank(op, name string, t *RawTensor, rank int) error {
	if len(t.Shape()) != rank {
		return errors.Wrapf(ErrShapeMismatch, "%s: %s must be %dD, got shape %v", op, name, rank, t.Shape())
	}
	return nil
}

// checkFloats runs the presence, device and float32 checks shared by all
// value-only operations.
func checkFloats(op string, dev Device, ts ...*RawTensor) error {
	if err := checkPresent(op, ts...); err != nil {
		return err
	}
	if err := checkDevice(op, dev, ts...); err != nil {
		return err
	}
	return checkDType(op, Float32, ts...)
}

// CheckElementwise validates an operation whose float32 operands all share
// the shape of the first one.
func CheckElementwise(op string, dev Device, ts ...*RawTensor) error {
	if err := checkFloats(op, dev, ts...); err != nil {
		return err
	}
	for i := 1; i < len(ts); i++ {
		if err := checkShape(op, "operand", ts[i], ts[0].Shape()); err != nil {
			return err
		}
	}
	return nil
}

// CheckCopy validates CopyTo: same dtype and shape, any dtype allowed.
func CheckCopy(dev Device, src, dst *RawTensor) error {
	const op = "copy_to"
	if err := checkPresent(op, src, dst); err != nil {
		return err
	}
	if err := checkDevice(op, dev, src, dst); err != nil {
		return err
	}
	if err := checkDType(op, src.DType(), dst); err != nil {
		return err
	}
	return checkShape(op, "dst", dst, src.Shape())
}

// CheckMV validates a matrix-vector broadcast and reports whether v is a row
// vector (1, n) broadcast down the rows. A (m, 1) vector broadcasts across
// the columns.
func CheckMV(op string, dev Device, m, v, out *RawTensor) (rowWise bool, err error) {
	if err := checkFloats(op, dev, m, v, out); err != nil {
		return false, err
	}
	if err := checkRank(op, "matrix", m, 2); err != nil {
		return false, err
	}
	if err := checkShape(op, "out", out, m.Shape()); err != nil {
		return false, err
	}
	rows, cols := m.Shape()[0], m.Shape()[1]
	switch vs := v.Shape(); {
	case vs.Equal(Shape{1, cols}):
		return true, nil
	case vs.Equal(Shape{rows, 1}):
		return false, nil
	default:
		return false, errors.Wrapf(ErrShapeMismatch,
			"%s: vector shape %v broadcasts against neither rows (1, %d) nor columns (%d, 1)", op, vs, cols, rows)
	}
}

// CheckBroadcastFeatures validates broadcast_features_t. a must have shape
// S + (1,) and out shape S + E. It returns prod(S) and prod(E).
func CheckBroadcastFeatures(dev Device, a, out *RawTensor) (outer, inner int, err error) {
	const op = "broadcast_features_t"
	if err := checkFloats(op, dev, a, out); err != nil {
		return 0, 0, err
	}
	as, os := a.Shape(), out.Shape()
	if len(as) == 0 || as[len(as)-1] != 1 {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "%s: input shape %v must end in a singleton", op, as)
	}
	lead := as[:len(as)-1]
	if len(os) < len(lead) || !os[:len(lead)].Equal(lead) {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "%s: out shape %v must start with %v", op, os, lead)
	}
	return lead.NumElements(), os[len(lead):].NumElements(), nil
}

// CheckSum validates sum_t.
func CheckSum(dev Device, a *RawTensor, axis int, out *RawTensor) error {
	const op = "sum_t"
	if err := checkFloats(op, dev, a, out); err != nil {
		return err
	}
	switch axis {
	case AllAxes:
		return checkShape(op, "out", out, Shape{})
	case 0, 1:
		if err := checkRank(op, "input", a, 2); err != nil {
			return err
		}
		want := Shape{1, a.Shape()[1]}
		if axis == 1 {
			want = Shape{a.Shape()[0]}
		}
		return checkShape(op, "out", out, want)
	default:
		return errors.Wrapf(ErrInvalidParameter, "%s: axis must be 0, 1 or AllAxes, got %d", op, axis)
	}
}

// CheckClip validates clip_t.
func CheckClip(dev Device, a *RawTensor, lo, hi float32, out *RawTensor) error {
	const op = "clip_t"
	if hi < lo {
		return errors.Wrapf(ErrInvalidParameter, "%s: max %v < min %v", op, hi, lo)
	}
	return CheckElementwise(op, dev, a, out)
}

// CheckDot validates a matrix product and returns (m, k, n).
func CheckDot(op string, dev Device, a, b, out *RawTensor) (m, k, n int, err error) {
	if err := checkFloats(op, dev, a, b, out); err != nil {
		return 0, 0, 0, err
	}
	if err := checkRank(op, "a", a, 2); err != nil {
		return 0, 0, 0, err
	}
	if err := checkRank(op, "b", b, 2); err != nil {
		return 0, 0, 0, err
	}
	m, k, n = a.Shape()[0], a.Shape()[1], b.Shape()[1]
	if b.Shape()[0] != k {
		return 0, 0, 0, errors.Wrapf(ErrShapeMismatch, "%s: inner dimensions differ: %v @ %v", op, a.Shape(), b.Shape())
	}
	if err := checkShape(op, "out", out, Shape{m, n}); err != nil {
		return 0, 0, 0, err
	}
	return m, k, n, nil
}

func conv2dGeometry(op string, x, w *RawTensor, pad int, stride [2]int) (Conv2DGeometry, error) {
	if err := checkRank(op, "x", x, 4); err != nil {
		return Conv2DGeometry{}, err
	}
	if err := checkRank(op, "w", w, 4); err != nil {
		return Conv2DGeometry{}, err
	}
	xs, ws := x.Shape(), w.Shape()
	if xs[1] != ws[1] {
		return Conv2DGeometry{}, errors.Wrapf(ErrShapeMismatch,
			"%s: input channels %d != kernel channels %d", op, xs[1], ws[1])
	}
	outShape, err := Conv2DOutputShape(xs[0], ws[0], xs[2], xs[3], ws[2], ws[3], pad, stride)
	if err != nil {
		return Conv2DGeometry{}, err
	}
	return Conv2DGeometry{
		N: xs[0], CIn: xs[1], H: xs[2], W: xs[3],
		COut: ws[0], KH: ws[2], KW: ws[3],
		OH: outShape[2], OW: outShape[3],
		Pad: pad, SH: stride[0], SW: stride[1],
	}, nil
}

// CheckConv2DForward validates conv2d_forward_batch.
func CheckConv2DForward(dev Device, x, w, b, out *RawTensor, pad int, stride [2]int) (Conv2DGeometry, error) {
	const op = "conv2d_forward_batch"
	if err := checkFloats(op, dev, x, w, b, out); err != nil {
		return Conv2DGeometry{}, err
	}
	g, err := conv2dGeometry(op, x, w, pad, stride)
	if err != nil {
		return g, err
	}
	if err := checkShape(op, "bias", b, Shape{g.COut}); err != nil {
		return g, err
	}
	return g, checkShape(op, "out", out, g.OutputShape())
}

// CheckConv2DBackward validates conv2d_backward_batch.
func CheckConv2DBackward(dev Device, x, w *RawTensor, pad int, stride [2]int,
	iDeltas, oDeltas, wDeltas, bDeltas *RawTensor,
) (Conv2DGeometry, error) {
	const op = "conv2d_backward_batch"
	if err := checkFloats(op, dev, x, w, iDeltas, oDeltas, wDeltas, bDeltas); err != nil {
		return Conv2DGeometry{}, err
	}
	g, err := conv2dGeometry(op, x, w, pad, stride)
	if err != nil {
		return g, err
	}
	if err := checkShape(op, "o_deltas", oDeltas, g.OutputShape()); err != nil {
		return g, err
	}
	if err := checkShape(op, "i_deltas", iDeltas, g.InputShape()); err != nil {
		return g, err
	}
	if err := checkShape(op, "w_deltas", wDeltas, g.WeightShape()); err != nil {
		return g, err
	}
	return g, checkShape(op, "b_deltas", bDeltas, Shape{g.COut})
}

func pool2dGeometry(op string, x *RawTensor, window [2]int, pad int, strides [2]int) (Pool2DGeometry, error) {
	if err := checkRank(op, "x", x, 4); err != nil {
		return Pool2DGeometry{}, err
	}
	xs := x.Shape()
	outShape, err := Pool2DOutputShape(xs[0], xs[1], xs[2], xs[3], window, pad, strides)
	if err != nil {
		return Pool2DGeometry{}, err
	}
	return Pool2DGeometry{
		N: xs[0], C: xs[1], H: xs[2], W: xs[3],
		WH: window[0], WW: window[1],
		OH: outShape[2], OW: outShape[3],
		Pad: pad, SH: strides[0], SW: strides[1],
	}, nil
}

func checkArgmax(op string, dev Device, g Pool2DGeometry, argmax *RawTensor) error {
	if err := checkPresent(op, argmax); err != nil {
		return err
	}
	if err := checkDevice(op, dev, argmax); err != nil {
		return err
	}
	if err := checkDType(op, Int32, argmax); err != nil {
		return err
	}
	return checkShape(op, "argmax", argmax, g.ArgmaxShape())
}

// CheckPool2DForward validates pool2d_forward_batch.
func CheckPool2DForward(dev Device, x *RawTensor, window [2]int, out *RawTensor, pad int, strides [2]int,
	argmax *RawTensor,
) (Pool2DGeometry, error) {
	const op = "pool2d_forward_batch"
	if err := checkFloats(op, dev, x, out); err != nil {
		return Pool2DGeometry{}, err
	}
	g, err := pool2dGeometry(op, x, window, pad, strides)
	if err != nil {
		return g, err
	}
	if err := checkShape(op, "outputs", out, g.OutputShape()); err != nil {
		return g, err
	}
	if err := checkArgmax(op, dev, g, argmax); err != nil {
		return g, err
	}
	return g, checkArgmaxRange(op, g, argmax)
}

// checkArgmaxRange requires every recorded position to lie inside its cell's
// window and inside the unpadded input. (-1, -1) marks an all-padding window.
func checkArgmaxRange(op string, g Pool2DGeometry, argmax *RawTensor) error {
	idx := argmax.AsInt32()
	cells := g.N * g.C * g.OH * g.OW
	for cell := 0; cell < cells; cell++ {
		r, c := int(idx[2*cell]), int(idx[2*cell+1])
		if r == -1 && c == -1 {
			continue
		}
		oh, ow := (cell/g.OW)%g.OH, cell%g.OW
		inWindow := r >= oh*g.SH && r < oh*g.SH+g.WH && c >= ow*g.SW && c < ow*g.SW+g.WW
		inInput := r >= g.Pad && r < g.Pad+g.H && c >= g.Pad && c < g.Pad+g.W
		if !inWindow || !inInput {
			return errors.Wrapf(ErrInvalidParameter,
				"%s: argmax of output cell %d is (%d, %d), outside its window or the input", op, cell, r, c)
		}
	}
	return nil
}

// CheckPool2DBackward validates pool2d_backward_batch.
func CheckPool2DBackward(dev Device, x *RawTensor, window [2]int, out *RawTensor, pad int, strides [2]int,
	argmax, iDeltas, oDeltas *RawTensor,
) (Pool2DGeometry, error) {
	const op = "pool2d_backward_batch"
	if err := checkFloats(op, dev, x, out, iDeltas, oDeltas); err != nil {
		return Pool2DGeometry{}, err
	}
	g, err := pool2dGeometry(op, x, window, pad, strides)
	if err != nil {
		return g, err
	}
	if err := checkShape(op, "outputs", out, g.OutputShape()); err != nil {
		return g, err
	}
	if err := checkShape(op, "o_deltas", oDeltas, g.OutputShape()); err != nil {
		return g, err
	}
	if err := checkShape(op, "i_deltas", iDeltas, g.InputShape()); err != nil {
		return g, err
	}
	return g, checkArgmax(op, dev, g, argmax)
}

// CheckActivation validates a forward activation (x, y).
func CheckActivation(op string, dev Device, x, y *RawTensor) error {
	return CheckElementwise(op, dev, x, y)
}

// CheckActivationDeriv validates a derivative (x, y, dy, dx).
func CheckActivationDeriv(op string, dev Device, x, y, dy, dx *RawTensor) error {
	return CheckElementwise(op, dev, x, y, dy, dx)
}

// Transfer deep-copies src from the memory space from into the space to.
// Handlers whose device memory is host-addressable implement FromHost and
// ToHost with it.
func Transfer(op string, src *RawTensor, from, to Device) (*RawTensor, error) {
	if err := checkPresent(op, src); err != nil {
		return nil, err
	}
	if err := checkDevice(op, from, src); err != nil {
		return nil, err
	}
	return src.CloneTo(to), nil
}
