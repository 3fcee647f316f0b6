package tensor

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestRandn(t *testing.T) {
	shape := Shape{100, 50}
	tensor, err := Randn(shape, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	if !tensor.Shape().Equal(shape) {
		t.Fatalf("Randn shape = %v, want %v", tensor.Shape(), shape)
	}

	data := tensor.Data()
	var sum float64
	for _, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("Randn produced non-finite value %v", v)
		}
		sum += float64(v)
	}
	mean := sum / float64(len(data))

	var variance float64
	for _, v := range data {
		d := float64(v) - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(data)))

	if math.Abs(mean) > 0.1 {
		t.Errorf("Randn mean = %v, want ~0", mean)
	}
	if math.Abs(std-1) > 0.1 {
		t.Errorf("Randn std = %v, want ~1", std)
	}
}

func TestRandRange(t *testing.T) {
	tensor, err := Rand(Shape{1000}, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range tensor.Data() {
		if v < 0 || v >= 1 {
			t.Fatalf("Rand value %d = %v outside [0, 1)", i, v)
		}
	}
}

func TestFullOnesZeros(t *testing.T) {
	full, err := Full(Shape{2, 3}, 3.5)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range full.Data() {
		if v != 3.5 {
			t.Fatalf("Full value = %v, want 3.5", v)
		}
	}

	ones, _ := Ones(Shape{4})
	if !sliceEqual(ones.Data(), []float32{1, 1, 1, 1}) {
		t.Errorf("Ones = %v", ones.Data())
	}

	zeros, _ := Zeros(Shape{0, 3})
	if zeros.NumElements() != 0 {
		t.Errorf("Zeros with empty dim has %d elements, want 0", zeros.NumElements())
	}

	if _, err := Zeros(Shape{2, -1}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for negative dim, got %v", err)
	}
}

func TestArange(t *testing.T) {
	a, err := Arange(2, 6)
	if err != nil {
		t.Fatal(err)
	}
	if !sliceEqual(a.Data(), []float32{2, 3, 4, 5}) {
		t.Errorf("Arange(2, 6) = %v", a.Data())
	}

	if _, err := Arange(5, 5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestEye(t *testing.T) {
	eye, err := Eye(3)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	if !sliceEqual(eye.Data(), want) {
		t.Errorf("Eye(3) = %v, want %v", eye.Data(), want)
	}
}
