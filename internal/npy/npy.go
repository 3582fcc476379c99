// Package npy stores host tensors in numpy .npz archives.
//
// Each tensor "x" becomes two members: "x.npy" with the flat row-major data
// (float32 or int32) and "x.shape.npy" with its dimensions as int64, so
// numpy.load(path)["x"].reshape(numpy.load(path)["x.shape"]) restores it.
// Archives written by numpy itself load through the member headers.
package npy

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio/npz"

	"github.com/born-ml/handler/internal/tensor"
)

const (
	member      = ".npy"
	shapeSuffix = ".shape"
)

// ErrFormat reports an archive member this package cannot turn into a
// tensor.
var ErrFormat = errors.New("npy: unsupported member")

// Save writes tensors to an .npz archive at path, in sorted name order.
func Save(path string, tensors map[string]*tensor.RawTensor) error {
	w, err := npz.Create(path)
	if err != nil {
		return errors.Wrapf(err, "npy: creating %s", path)
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := write(w, name, tensors[name]); err != nil {
			_ = w.Close()
			return err
		}
	}
	return errors.Wrapf(w.Close(), "npy: closing %s", path)
}

func write(w *npz.Writer, name string, t *tensor.RawTensor) error {
	if t.Device() != tensor.CPU {
		return errors.Wrapf(tensor.ErrDeviceMismatch, "npy: %s lives on %s, copy it to the host first", name, t.Device())
	}
	var data any
	switch t.DType() {
	case tensor.Float32:
		data = t.AsFloat32()
	case tensor.Int32:
		data = t.AsInt32()
	default:
		return errors.Wrapf(tensor.ErrDTypeMismatch, "npy: %s has dtype %s", name, t.DType())
	}
	if err := w.Write(name+member, data); err != nil {
		return errors.Wrapf(err, "npy: writing %s", name)
	}

	dims := make([]int64, len(t.Shape()))
	for i, d := range t.Shape() {
		dims[i] = int64(d)
	}
	return errors.Wrapf(w.Write(name+shapeSuffix+member, dims), "npy: writing shape of %s", name)
}

// Load reads every tensor of an .npz archive into host memory.
func Load(path string) (map[string]*tensor.RawTensor, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "npy: opening %s", path)
	}
	defer r.Close()

	keys := map[string]bool{}
	for _, k := range r.Keys() {
		keys[strings.TrimSuffix(k, member)] = true
	}

	tensors := make(map[string]*tensor.RawTensor)
	for name := range keys {
		if strings.HasSuffix(name, shapeSuffix) && keys[strings.TrimSuffix(name, shapeSuffix)] {
			continue
		}
		t, err := read(r, name, keys[name+shapeSuffix])
		if err != nil {
			return nil, err
		}
		tensors[name] = t
	}
	return tensors, nil
}

func read(r *npz.Reader, name string, hasShape bool) (*tensor.RawTensor, error) {
	header := r.Header(name + member)
	if header == nil {
		return nil, errors.Wrapf(ErrFormat, "%s: missing header", name)
	}
	if header.Descr.Fortran {
		return nil, errors.Wrapf(ErrFormat, "%s: Fortran order", name)
	}

	shape := tensor.Shape(slices.Clone(header.Descr.Shape))
	if hasShape {
		var dims []int64
		if err := r.Read(name+shapeSuffix+member, &dims); err != nil {
			return nil, errors.Wrapf(err, "npy: reading shape of %s", name)
		}
		shape = make(tensor.Shape, len(dims))
		for i, d := range dims {
			shape[i] = int(d)
		}
	}

	switch strings.TrimLeft(header.Descr.Type, "<=|") {
	case "f4":
		var data []float32
		if err := r.Read(name+member, &data); err != nil {
			return nil, errors.Wrapf(err, "npy: reading %s", name)
		}
		return tensor.FromFloat32(data, shape)
	case "i4":
		var data []int32
		if err := r.Read(name+member, &data); err != nil {
			return nil, errors.Wrapf(err, "npy: reading %s", name)
		}
		return tensor.FromInt32(data, shape)
	default:
		return nil, errors.Wrapf(ErrFormat, "%s: dtype %q", name, header.Descr.Type)
	}
}
