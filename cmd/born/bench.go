// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/tensorcore/backend/cpu"
	"github.com/born-ml/tensorcore/device"
	"github.com/born-ml/tensorcore/internal/envconfig"
	"github.com/born-ml/tensorcore/tensor"
)

type benchTarget struct {
	label   string
	backend tensor.Backend
}

type benchResult struct {
	label  string
	best   time.Duration
	maxErr float64
}

// MatMulBenchHandler times an m×n by n×p product on every CPU strategy and,
// when --device names an accelerator, on that device.
func MatMulBenchHandler(cmd *cobra.Command, _ []string) error {
	m, _ := cmd.Flags().GetInt("m")
	n, _ := cmd.Flags().GetInt("n")
	p, _ := cmd.Flags().GetInt("p")
	runs, _ := cmd.Flags().GetInt("runs")
	seed, _ := cmd.Flags().GetInt64("seed")
	verify, _ := cmd.Flags().GetBool("verify")
	serial, _ := cmd.Flags().GetBool("serial")
	devName, _ := cmd.Flags().GetString("device")

	if m <= 0 || n <= 0 || p <= 0 {
		return fmt.Errorf("bench matmul: sizes must be positive, got m=%d n=%d p=%d", m, n, p)
	}
	if runs <= 0 {
		return errors.New("bench matmul: --runs must be positive")
	}

	targets := cpuTargets(serial)
	if devName != "" {
		kind, err := device.ParseKind(devName)
		if err != nil {
			return err
		}
		if kind != tensor.CPU {
			session, err := device.Open(kind)
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					slog.Warn("closing device session", "device", kind, "error", err)
				}
			}()
			targets = append(targets, benchTarget{label: session.Backend().Name(), backend: session.Backend()})
		}
	}

	rng := rand.New(rand.NewSource(seed))
	a, err := tensor.Rand(tensor.Shape{m, n}, rng)
	if err != nil {
		return err
	}
	b, err := tensor.Rand(tensor.Shape{n, p}, rng)
	if err != nil {
		return err
	}

	var ref *mat.Dense
	if verify {
		ref = referenceProduct(a, b)
	}

	results := make([]benchResult, 0, len(targets))
	for _, tgt := range targets {
		res, err := benchMatMul(tgt, a, b, runs, ref)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	flops := 2 * float64(m) * float64(n) * float64(p)
	data := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{
			r.label,
			fmt.Sprintf("%dx%dx%d", m, n, p),
			r.best.Round(time.Microsecond).String(),
			strconv.FormatFloat(flops/r.best.Seconds()/1e9, 'f', 2, 64),
		}
		if verify {
			row = append(row, strconv.FormatFloat(r.maxErr, 'g', 3, 64))
		}
		data = append(data, row)
	}

	header := []string{"BACKEND", "SIZE", "BEST", "GFLOP/S"}
	if verify {
		header = append(header, "MAX ERROR")
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func cpuTargets(serial bool) []benchTarget {
	mode := "parallel"
	base := cpu.DefaultConfig()
	if serial {
		mode = "serial"
		base = cpu.SerialConfig()
	}

	var targets []benchTarget
	for _, s := range []cpu.Strategy{cpu.ScalarStrategy(), cpu.SIMDStrategy()} {
		cfg := base
		cfg.Strategy = s
		targets = append(targets, benchTarget{
			label:   fmt.Sprintf("CPU %s (%s)", s.Name(), mode),
			backend: cpu.NewWithConfig(cfg),
		})
	}
	return targets
}

func benchMatMul(tgt benchTarget, a, b *tensor.RawTensor, runs int, ref *mat.Dense) (benchResult, error) {
	res := benchResult{label: tgt.label, best: time.Duration(math.MaxInt64)}

	var c *tensor.RawTensor
	for range runs {
		start := time.Now()
		out, err := tgt.backend.MatMul(a, b)
		if err != nil {
			return res, fmt.Errorf("bench %s: %w", tgt.label, err)
		}
		if d := time.Since(start); d < res.best {
			res.best = d
		}
		if c != nil {
			c.Release()
		}
		c = out
	}
	defer c.Release()

	if ref != nil {
		res.maxErr = maxAbsDiff(ref, c.Data())
	}
	slog.Debug("matmul benchmark", "backend", tgt.label, "best", res.best, "max_error", res.maxErr)
	return res, nil
}

// referenceProduct computes a·b in float64 with gonum.
func referenceProduct(a, b *tensor.RawTensor) *mat.Dense {
	as, bs := a.Shape(), b.Shape()
	var out mat.Dense
	out.Mul(mat.NewDense(as[0], as[1], widen(a.Data())), mat.NewDense(bs[0], bs[1], widen(b.Data())))
	return &out
}

func widen(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func maxAbsDiff(ref *mat.Dense, got []float32) float64 {
	rows, cols := ref.Dims()
	var worst float64
	for i := range rows {
		for j := range cols {
			if d := math.Abs(ref.At(i, j) - float64(got[i*cols+j])); d > worst {
				worst = d
			}
		}
	}
	return worst
}

func newBenchCmd() *cobra.Command {
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark tensor kernels",
	}

	matmulCmd := &cobra.Command{
		Use:   "matmul",
		Short: "Benchmark matrix multiplication",
		Args:  cobra.NoArgs,
		RunE:  MatMulBenchHandler,
	}
	matmulCmd.Flags().IntP("m", "m", 256, "Rows of A")
	matmulCmd.Flags().IntP("n", "n", 256, "Columns of A and rows of B")
	matmulCmd.Flags().IntP("p", "p", 256, "Columns of B")
	matmulCmd.Flags().Int("runs", 3, "Timed runs per backend; the best is reported")
	matmulCmd.Flags().Int64("seed", 1, "Random seed for the operands")
	matmulCmd.Flags().Bool("verify", false, "Compare every result against a float64 reference product")
	matmulCmd.Flags().Bool("serial", false, "Run the CPU backends on a single worker")
	matmulCmd.Flags().String("device", envconfig.Device(), "Also benchmark on this accelerator (webgpu, emulator)")

	envVars := envconfig.AsMap()
	appendEnvDocs(matmulCmd, []envconfig.EnvVar{
		envVars["BORN_NUM_THREADS"],
		envVars["BORN_MATMUL_MIN_ROWS"],
		envVars["BORN_MATMUL_MIN_WORK"],
		envVars["BORN_NOSIMD"],
		envVars["BORN_DEVICE"],
	})

	benchCmd.AddCommand(matmulCmd)
	return benchCmd
}
