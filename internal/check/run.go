package check

import (
	"context"

	"github.com/pkg/errors"

	"github.com/born-ml/handler/internal/tensor"
)

// OutputParity is the comparison of one output argument.
type OutputParity struct {
	Name   string
	Parity Parity
}

// Result is the outcome of one case.
type Result struct {
	Op      string
	Case    string
	Outputs []OutputParity
	Err     error // an operation failed on either handler
}

// OK reports whether the case ran on both handlers and every output matched.
func (r *Result) OK() bool {
	if r.Err != nil {
		return false
	}
	for _, o := range r.Outputs {
		if !o.Parity.OK() {
			return false
		}
	}
	return true
}

// Run executes every case on ref and on other and compares the outputs of
// other against those of ref. Index tensors must match exactly. Cases with
// an oracle also check ref against it, so both handlers agreeing on a wrong
// answer is caught.
func Run(ctx context.Context, ref, other tensor.Handler, cases []Case, tol Tolerance) ([]Result, error) {
	results := make([]Result, 0, len(cases))
	for i := range cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, runCase(ref, other, &cases[i], tol))
	}
	return results, nil
}

func runCase(ref, other tensor.Handler, c *Case, tol Tolerance) Result {
	r := Result{Op: c.Op, Case: c.Name}

	want, err := execute(ref, c)
	if err != nil {
		r.Err = errors.Wrapf(err, "%s on %s", c.Name, ref.Name())
		return r
	}
	got, err := execute(other, c)
	if err != nil {
		r.Err = errors.Wrapf(err, "%s on %s", c.Name, other.Name())
		return r
	}

	for i, a := range c.Args {
		if a.Role != Output {
			continue
		}
		var p Parity
		if a.Host.DType() == tensor.Int32 {
			p = CompareInt32(want[i].AsInt32(), got[i].AsInt32())
		} else {
			p = Compare(want[i].AsFloat32(), got[i].AsFloat32(), tol)
		}
		r.Outputs = append(r.Outputs, OutputParity{Name: a.Name, Parity: p})
	}

	if c.Oracle != nil {
		for i, a := range c.Args {
			if a.Role == Output {
				r.Outputs = append(r.Outputs, OutputParity{
					Name:   a.Name + "/oracle",
					Parity: CompareOracle(c.Oracle(c.Args), want[i].AsFloat32(), tol),
				})
				break
			}
		}
	}
	return r
}

// execute copies the case arguments into h, runs the operation and returns
// every argument copied back to the host.
func execute(h tensor.Handler, c *Case) ([]*tensor.RawTensor, error) {
	args := make([]*tensor.RawTensor, len(c.Args))
	for i, a := range c.Args {
		t, err := h.FromHost(a.Host)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}
	if err := c.Call(h, args); err != nil {
		return nil, err
	}
	if err := h.Sync(); err != nil {
		return nil, err
	}
	host := make([]*tensor.RawTensor, len(args))
	for i, t := range args {
		back, err := h.ToHost(t)
		if err != nil {
			return nil, err
		}
		host[i] = back
	}
	return host, nil
}

// Summary counts passing and failing results per operation, in first-seen
// order.
type Summary struct {
	Op     string
	Passed int
	Failed int
}

// Summarize groups results by operation.
func Summarize(results []Result) []Summary {
	var out []Summary
	index := map[string]int{}
	for i := range results {
		r := &results[i]
		k, ok := index[r.Op]
		if !ok {
			k = len(out)
			index[r.Op] = k
			out = append(out, Summary{Op: r.Op})
		}
		if r.OK() {
			out[k].Passed++
		} else {
			out[k].Failed++
		}
	}
	return out
}
