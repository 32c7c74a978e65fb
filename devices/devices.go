// Package devices resolves the set of compute devices used for replicated
// training.
package devices

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
)

// Resolve returns the device names to replicate over. An explicit list wins;
// otherwise all detected GPUs are used; otherwise a single CPU device.
func Resolve(explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	if gpus := probeGPUs(); len(gpus) > 0 {
		return gpus
	}
	return []string{cpuName()}
}

func cpuName() string {
	if name := cpuid.CPU.BrandName; name != "" {
		return fmt.Sprintf("cpu:0 (%s)", name)
	}
	return "cpu:0"
}
