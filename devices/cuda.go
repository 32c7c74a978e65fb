//go:build cuda

package devices

import (
	"fmt"

	"gorgonia.org/cu"
)

func probeGPUs() []string {
	n, err := cu.NumDevices()
	if err != nil || n == 0 {
		return nil
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, err := cu.Device(i).Name()
		if err != nil {
			name = "unknown"
		}
		names = append(names, fmt.Sprintf("gpu:%d (%s)", i, name))
	}
	return names
}
