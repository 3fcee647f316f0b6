package tensor

import (
	"errors"
	"testing"
)

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3, 4}, 24},
		{Shape{3, 0}, 0},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestComputeStrides(t *testing.T) {
	got := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ComputeStrides() = %v, want %v", got, want)
		}
	}
	if len(Shape{}.ComputeStrides()) != 0 {
		t.Error("scalar shape must have no strides")
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"row vector", Shape{2, 3}, Shape{3}, Shape{2, 3}, true, false},
		{"scalar", Shape{}, Shape{4, 2}, Shape{4, 2}, true, false},
		{"both sides", Shape{4, 1, 3}, Shape{2, 1}, Shape{4, 2, 3}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
		{"trailing mismatch", Shape{2, 3}, Shape{2}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, needs, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				if !errors.Is(err, ErrBroadcast) {
					t.Fatalf("expected ErrBroadcast, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("shape = %v, want %v", got, tt.want)
			}
			if needs != tt.broadcast {
				t.Errorf("needsBroadcast = %v, want %v", needs, tt.broadcast)
			}
		})
	}
}

func TestBroadcastStrides(t *testing.T) {
	// [3, 1] with strides [1, 1] broadcast to [2, 3, 4].
	got := BroadcastStrides(Shape{3, 1}, []int{1, 1}, Shape{2, 3, 4})
	want := []int{0, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("BroadcastStrides() = %v, want %v", got, want)
		}
	}
}

func TestShapeValidateAndClone(t *testing.T) {
	if err := (Shape{2, 0, 3}).Validate(); err != nil {
		t.Errorf("zero-size dimension rejected: %v", err)
	}
	if err := (Shape{2, -1}).Validate(); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	s := Shape{2, 3}
	c := s.Clone()
	c[0] = 9
	if s[0] != 2 {
		t.Error("Clone aliases the original")
	}
	if scalar := (Shape{}).Clone(); scalar == nil || len(scalar) != 0 {
		t.Errorf("scalar Clone() = %#v, want empty non-nil shape", scalar)
	}

	got := Shape{2, 0, 3}.ComputeStrides()
	want := []int{0, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ComputeStrides() = %v, want %v", got, want)
		}
	}
}
