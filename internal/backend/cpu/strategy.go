package cpu

import (
	"log/slog"
	"sync"

	cpuid "golang.org/x/sys/cpu"

	"github.com/born-ml/tensorcore/internal/envconfig"
)

// SIMDWidth is the number of float32 lanes processed per iteration by the
// SIMD strategy. The loop is unrolled to the width of an AVX2 register; it is
// plain Go, not vector instructions.
const SIMDWidth = 8

// Strategy is a matmul inner-loop implementation. Implementations are
// stateless and safe for concurrent use.
type Strategy interface {
	// Name identifies the strategy in logs and benchmarks.
	Name() string
	// Row accumulates c += a · B for one output row, where a has n elements
	// and B is row-major [n, p].
	Row(c, a, b []float32, n, p int)
	// RowTransB accumulates c += a · Btᵀ, where Bt is row-major [p, n].
	RowTransB(c, a, bt []float32, n, p int)
}

var defaultStrategy = sync.OnceValue(func() Strategy {
	s := selectStrategy(hasSIMD(), envconfig.NoSIMD())
	slog.Debug("matmul strategy selected", "strategy", s.Name(),
		"avx2", cpuid.X86.HasAVX2, "asimd", cpuid.ARM64.HasASIMD)
	return s
})

// DefaultStrategy probes the CPU on first use and returns the same strategy
// for the life of the process. BORN_NOSIMD forces the scalar strategy.
func DefaultStrategy() Strategy {
	return defaultStrategy()
}

// ScalarStrategy returns the plain i-k-j loop.
func ScalarStrategy() Strategy {
	return scalarStrategy{}
}

// SIMDStrategy returns the SIMDWidth-unrolled loop.
func SIMDStrategy() Strategy {
	return simdStrategy{}
}

func hasSIMD() bool {
	return cpuid.X86.HasAVX2 || cpuid.ARM64.HasASIMD
}

func selectStrategy(simd, disabled bool) Strategy {
	if simd && !disabled {
		return simdStrategy{}
	}
	return scalarStrategy{}
}

type scalarStrategy struct{}

func (scalarStrategy) Name() string { return "scalar" }

func (scalarStrategy) Row(c, a, b []float32, n, p int) {
	c = c[:p]
	for k := 0; k < n; k++ {
		aik := a[k]
		bk := b[k*p : k*p+p]
		for j := range c {
			c[j] += aik * bk[j]
		}
	}
}

func (scalarStrategy) RowTransB(c, a, bt []float32, n, p int) {
	a = a[:n]
	for j := 0; j < p; j++ {
		bj := bt[j*n : j*n+n]
		var sum float32
		for k := range a {
			sum += a[k] * bj[k]
		}
		c[j] += sum
	}
}

type simdStrategy struct{}

func (simdStrategy) Name() string { return "simd" }

func (simdStrategy) Row(c, a, b []float32, n, p int) {
	c = c[:p]
	for k := 0; k < n; k++ {
		axpy(c, b[k*p:k*p+p], a[k])
	}
}

func (simdStrategy) RowTransB(c, a, bt []float32, n, p int) {
	a = a[:n]
	for j := 0; j < p; j++ {
		c[j] += dot(a, bt[j*n:j*n+n])
	}
}

// axpy computes y += alpha*x in SIMDWidth-wide blocks with a scalar tail.
func axpy(y, x []float32, alpha float32) {
	x = x[:len(y)]
	j := 0
	for ; j+SIMDWidth <= len(y); j += SIMDWidth {
		yy := y[j : j+SIMDWidth : j+SIMDWidth]
		xx := x[j : j+SIMDWidth : j+SIMDWidth]
		yy[0] += alpha * xx[0]
		yy[1] += alpha * xx[1]
		yy[2] += alpha * xx[2]
		yy[3] += alpha * xx[3]
		yy[4] += alpha * xx[4]
		yy[5] += alpha * xx[5]
		yy[6] += alpha * xx[6]
		yy[7] += alpha * xx[7]
	}
	for ; j < len(y); j++ {
		y[j] += alpha * x[j]
	}
}

// dot returns Σ a[i]*b[i] using SIMDWidth independent accumulators.
func dot(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	j := 0
	for ; j+SIMDWidth <= len(a); j += SIMDWidth {
		aa := a[j : j+SIMDWidth : j+SIMDWidth]
		bb := b[j : j+SIMDWidth : j+SIMDWidth]
		s0 += aa[0] * bb[0]
		s1 += aa[1] * bb[1]
		s2 += aa[2] * bb[2]
		s3 += aa[3] * bb[3]
		s4 += aa[4] * bb[4]
		s5 += aa[5] * bb[5]
		s6 += aa[6] * bb[6]
		s7 += aa[7] * bb[7]
	}
	sum := (s0 + s1) + (s2 + s3) + (s4 + s5) + (s6 + s7)
	for ; j < len(a); j++ {
		sum += a[j] * b[j]
	}
	return sum
}
