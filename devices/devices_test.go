package devices

import "testing"

func TestResolveExplicit(t *testing.T) {
	got := Resolve([]string{"gpu:0", "gpu:1"})
	if len(got) != 2 || got[0] != "gpu:0" || got[1] != "gpu:1" {
		t.Fatalf("Resolve(explicit) = %v", got)
	}
}

func TestResolveFallsBackToOneDevice(t *testing.T) {
	got := Resolve(nil)
	if len(got) != 1 && len(probeGPUs()) == 0 {
		t.Fatalf("Resolve(nil) = %v, want exactly one device", got)
	}
	if len(got) == 0 {
		t.Fatal("Resolve(nil) returned no devices")
	}
}
