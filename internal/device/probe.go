package device

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Info describes a compute device.
type Info struct {
	Kind      tensor.Device
	Name      string
	Available bool
}

// Prober reports whether an accelerator kind can be opened on this host.
type Prober func() Info

// CPUInfo describes the host CPU, which is always available.
func CPUInfo() Info {
	return Info{
		Kind:      tensor.CPU,
		Name:      fmt.Sprintf("%s/%s, %d threads", runtime.GOOS, runtime.GOARCH, runtime.NumCPU()),
		Available: true,
	}
}

// Probe returns the CPU followed by the result of each prober.
func Probe(probers ...Prober) []Info {
	infos := []Info{CPUInfo()}
	for _, p := range probers {
		info := p()
		slog.Debug("device probed", "device", info.Kind, "name", info.Name, "available", info.Available)
		infos = append(infos, info)
	}
	return infos
}
