package tensor

import (
	"fmt"
	"math"
)

// ToEnd is the End value of a Range that extends to the end of its dimension.
const ToEnd = math.MaxInt

// Range selects elements start, start+step, ... up to (not including) end along
// one dimension. Negative Start and End count from the end of the dimension.
type Range struct {
	Start int
	End   int
	Step  int

	single bool // built by Index: Start must name an existing element
}

// All selects an entire dimension.
func All() Range {
	return Range{Start: 0, End: ToEnd, Step: 1}
}

// Span selects [start, end) with step 1.
func Span(start, end int) Range {
	return Range{Start: start, End: end, Step: 1}
}

// Stride selects [start, end) every step elements.
func Stride(start, end, step int) Range {
	return Range{Start: start, End: end, Step: step}
}

// Index selects a single element, keeping the dimension with size 1.
// Resolving it fails unless -dim <= i < dim.
func Index(i int) Range {
	end := i + 1
	if i == -1 {
		end = ToEnd
	}
	return Range{Start: i, End: end, Step: 1, single: true}
}

// Resolve maps the range onto a dimension of the given size and returns the
// resolved start offset and the number of selected elements.
//
// A negative start or end is taken relative to dim, end is clamped to dim and
// size = ceil((end-start)/step). An empty selection has size 0.
func (r Range) Resolve(dim int) (start, size int, err error) {
	if r.single {
		if r.Start < -dim || r.Start >= dim {
			return 0, 0, fmt.Errorf("index %d out of bounds for dimension of size %d: %w", r.Start, dim, ErrOutOfRange)
		}
		if r.Start < 0 {
			return r.Start + dim, 1, nil
		}
		return r.Start, 1, nil
	}
	if r.Step <= 0 {
		return 0, 0, fmt.Errorf("range step %d must be positive: %w", r.Step, ErrOutOfRange)
	}

	start = r.Start
	if start < 0 {
		start += dim
	}
	if start < 0 || start > dim {
		return 0, 0, fmt.Errorf("range start %d outside dimension of size %d: %w", r.Start, dim, ErrOutOfRange)
	}

	end := r.End
	if end < 0 {
		end += dim
	}
	end = min(max(end, 0), dim)

	if end <= start {
		return start, 0, nil
	}
	return start, (end - start + r.Step - 1) / r.Step, nil
}

// String formats the range in start:end:step notation.
func (r Range) String() string {
	if r.single {
		return fmt.Sprintf("%d", r.Start)
	}
	if r.End == ToEnd {
		return fmt.Sprintf("%d::%d", r.Start, r.Step)
	}
	return fmt.Sprintf("%d:%d:%d", r.Start, r.End, r.Step)
}
