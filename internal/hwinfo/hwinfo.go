// Package hwinfo gathers the host and GPU summary shown on the scan
// page: which machine this is, what it runs, and which graphics device
// the driver scan is most likely to touch.
package hwinfo

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/driverdeck/driverdeck/internal/executor"
)

// Summary describes the local machine.
type Summary struct {
	Hostname     string
	OSVersion    string
	Kernel       string
	Architecture string
	Uptime       time.Duration
	Manufacturer string
	Model        string
	GPUModel     string
}

// Collect builds a Summary. Every field is best-effort: a source that
// cannot be read simply leaves its field empty.
func Collect(ctx context.Context, runner executor.Runner) Summary {
	s := Summary{Architecture: runtime.GOARCH}

	if info, err := host.Info(); err == nil {
		s.Hostname = info.Hostname
		s.OSVersion = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
		s.Kernel = info.KernelVersion
		s.Uptime = time.Duration(info.Uptime) * time.Second
	}

	s.Manufacturer = readDMI("sys_vendor")
	s.Model = readDMI("product_name")
	s.GPUModel = detectGPU(ctx, runner)

	return s
}

// readDMI reads a value from /sys/class/dmi/id/.
func readDMI(name string) string {
	data, err := os.ReadFile("/sys/class/dmi/id/" + name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// detectGPU finds the primary display controller via lspci.
func detectGPU(ctx context.Context, runner executor.Runner) string {
	if !runner.Available("lspci") {
		return ""
	}
	result, err := runner.Run(ctx, executor.Command{Name: "lspci", Timeout: 10 * time.Second})
	if err != nil || result.ExitCode != 0 {
		return ""
	}
	return parseGPU(result.Stdout)
}

func parseGPU(output string) string {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "vga") || strings.Contains(lower, "3d controller") {
			// Format: "00:02.0 VGA compatible controller: Intel Corporation ..."
			parts := strings.SplitN(line, ": ", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}
