package multicore

import (
	"github.com/pkg/errors"

	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// scatterPlan is a validated split of a scatter-accumulate over n work items
// into a destination of size elements.
type scatterPlan struct {
	ranges []parallel.Range
	size   int
}

// planScatter splits n work items across the workers and checks that the
// partial buffers fit the scratch budget. It performs no writes, so callers
// run it before touching any output.
func (mc *Backend) planScatter(op string, n, size int) (scatterPlan, error) {
	ranges := parallel.Chunks(n, mc.cfg)
	plan := scatterPlan{ranges: ranges, size: size}
	if len(ranges) <= 1 {
		return plan, nil
	}
	need := int64(len(ranges)) * int64(size) * int64(tensor.Float32.Size())
	if mc.limit > 0 && need > mc.limit {
		mc.logger.Debug("scratch budget exceeded", "op", op, "need", need, "limit", mc.limit)
		return plan, errors.Wrapf(tensor.ErrOutOfMemory,
			"%s: %d partial buffers need %d bytes of scratch, limit is %d", op, len(ranges), need, mc.limit)
	}
	return plan, nil
}

// scatterAccumulate zeroes dst and adds into it everything scatter writes for
// the planned work items.
//
// Each chunk scatters into its own zeroed partial buffer; the partials are
// then summed per destination element in chunk order. Chunk boundaries depend
// only on the work size and the parallel configuration, which makes the
// reduction deterministic. A single-chunk plan scatters into dst directly.
func (mc *Backend) scatterAccumulate(plan scatterPlan, dst []float32, scatter func(r parallel.Range, acc []float32)) {
	if len(plan.ranges) <= 1 {
		for i := range dst {
			dst[i] = 0
		}
		for _, r := range plan.ranges {
			scatter(r, dst)
		}
		return
	}

	partials := make([][]float32, len(plan.ranges))
	parallel.ForRange(len(plan.ranges), parallel.Config{Enabled: true, NumWorkers: mc.cfg.NumWorkers, MinChunkSize: 1},
		func(_ int, chunks parallel.Range) {
			for k := chunks.Lo; k < chunks.Hi; k++ {
				partials[k] = make([]float32, plan.size)
				scatter(plan.ranges[k], partials[k])
			}
		})

	mc.forEach(len(dst), func(i int) {
		sum := float32(0)
		for _, p := range partials {
			sum += p[i]
		}
		dst[i] = sum
	})
}
