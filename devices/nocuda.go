//go:build !cuda

package devices

func probeGPUs() []string {
	return nil
}
