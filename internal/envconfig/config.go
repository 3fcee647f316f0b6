// Package envconfig reads engine tuning knobs from BORN_* environment variables.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

var (
	// NoSIMD forces the scalar matmul strategy. Configure with BORN_NOSIMD.
	NoSIMD = Bool("BORN_NOSIMD")
	// Device names the preferred accelerator kind ("webgpu", "emulator"). Configure with BORN_DEVICE.
	Device = String("BORN_DEVICE")

	// MatMulMinRows is the row-range size below which matmul is never bisected.
	MatMulMinRows = Uint("BORN_MATMUL_MIN_ROWS", 16)
	// MatMulMinWork is the rows*n*p product below which matmul runs serially.
	MatMulMinWork = Uint("BORN_MATMUL_MIN_WORK", 32768)
	// ParallelMinChunk is the element count above which elementwise ops split across workers.
	ParallelMinChunk = Uint("BORN_PARALLEL_MIN_CHUNK", 16384)
)

// NumThreads returns the fork/join pool width. Configure with BORN_NUM_THREADS.
// Zero or invalid values fall back to the number of CPUs.
func NumThreads() int {
	n := Uint("BORN_NUM_THREADS", 0)()
	if n == 0 {
		return runtime.NumCPU()
	}
	return int(n)
}

// LogLevel returns the log level for the CLI.
// Values are 0 or false INFO (default), 1 or true DEBUG.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("BORN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// Var returns an environment variable stripped of leading and trailing quotes or spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// BoolWithDefault returns a getter for a boolean variable. Unparseable
// non-empty values count as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a getter for a boolean variable that defaults to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String returns a getter for a string variable.
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint returns a getter for an unsigned integer variable.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar describes one configuration variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every configuration variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"BORN_DEBUG":              {"BORN_DEBUG", LogLevel(), "Show additional debug information (e.g. BORN_DEBUG=1)"},
		"BORN_DEVICE":             {"BORN_DEVICE", Device(), "Preferred accelerator (webgpu, emulator)"},
		"BORN_NOSIMD":             {"BORN_NOSIMD", NoSIMD(), "Force the scalar matmul kernel"},
		"BORN_NUM_THREADS":        {"BORN_NUM_THREADS", NumThreads(), "Maximum number of parallel workers"},
		"BORN_MATMUL_MIN_ROWS":    {"BORN_MATMUL_MIN_ROWS", MatMulMinRows(), "Smallest matmul row range that is split (default 16)"},
		"BORN_MATMUL_MIN_WORK":    {"BORN_MATMUL_MIN_WORK", MatMulMinWork(), "Smallest rows*n*p product that is split (default 32768)"},
		"BORN_PARALLEL_MIN_CHUNK": {"BORN_PARALLEL_MIN_CHUNK", ParallelMinChunk(), "Element count above which element-wise ops run in parallel (default 16384)"},
	}
}

// Values returns every configuration value formatted as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
