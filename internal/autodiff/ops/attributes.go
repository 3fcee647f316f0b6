package ops

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Attributes are the parameters of an operation node in an imported graph,
// as decoded from YAML or JSON.
type Attributes map[string]any

// Ints returns the integer list stored under key, or nil if it is absent.
func (a Attributes) Ints(key string) ([]int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, attrError(key, "a list of integers", v)
	}
	out := make([]int, len(list))
	for i, item := range list {
		n, ok := toInt(item)
		if !ok {
			return nil, attrError(key, "a list of integers", v)
		}
		out[i] = n
	}
	return out, nil
}

// Float returns the number stored under key, or def if it is absent.
func (a Attributes) Float(key string, def float32) (float32, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float32(n), nil
	case float64:
		return float32(n), nil
	default:
		return 0, attrError(key, "a number", v)
	}
}

// Ranges decodes one Range per dimension. Each entry is either an integer
// index, the string ":" for a whole dimension, or a [start, end, step] list
// where end and step are optional and a null end runs to the end.
func (a Attributes) Ranges(key string) ([]tensor.Range, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, attrError(key, "a list of ranges", v)
	}

	out := make([]tensor.Range, len(list))
	for i, item := range list {
		r, err := decodeRange(item)
		if err != nil {
			return nil, fmt.Errorf("attribute %q entry %d: %w", key, i, err)
		}
		out[i] = r
	}
	return out, nil
}

func decodeRange(item any) (tensor.Range, error) {
	if n, ok := toInt(item); ok {
		return tensor.Index(n), nil
	}
	if s, ok := item.(string); ok && s == ":" {
		return tensor.All(), nil
	}
	parts, ok := item.([]any)
	if !ok || len(parts) == 0 || len(parts) > 3 {
		return tensor.Range{}, fmt.Errorf("range %v: %w", item, tensor.ErrInvalidGraph)
	}

	r := tensor.Range{End: tensor.ToEnd, Step: 1}
	start, ok := toInt(parts[0])
	if !ok {
		return tensor.Range{}, fmt.Errorf("range start %v: %w", parts[0], tensor.ErrInvalidGraph)
	}
	r.Start = start
	if len(parts) > 1 && parts[1] != nil {
		end, ok := toInt(parts[1])
		if !ok {
			return tensor.Range{}, fmt.Errorf("range end %v: %w", parts[1], tensor.ErrInvalidGraph)
		}
		r.End = end
	}
	if len(parts) > 2 {
		step, ok := toInt(parts[2])
		if !ok {
			return tensor.Range{}, fmt.Errorf("range step %v: %w", parts[2], tensor.ErrInvalidGraph)
		}
		r.Step = step
	}
	return r, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func attrError(key, want string, got any) error {
	return fmt.Errorf("attribute %q must be %s, got %v: %w", key, want, got, tensor.ErrInvalidGraph)
}
