package schedules

import (
	"math"
	"testing"
)

func TestNoamDecay(t *testing.T) {
	d := NewNoamDecay(1, 512, 4000)

	want := math.Pow(512, -0.5) * math.Min(1, math.Pow(4000, -1.5))
	if got := d.Rate(0); math.Abs(got-want) > 1e-12 {
		t.Fatalf("Rate(0) = %g, want %g", got, want)
	}
	for _, step := range []int{0, 1, 100, 4000, 100000, 1000000} {
		v := d.Rate(step)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Rate(%d) = %g, want non-negative finite", step, v)
		}
	}
}

func TestRsqrtDecay(t *testing.T) {
	d := NewRsqrtDecay(2, 1000)

	flat := 2 / math.Sqrt(1000)
	for _, step := range []int{0, 1, 500, 1000} {
		if got := d.Rate(step); math.Abs(got-flat) > 1e-12 {
			t.Fatalf("Rate(%d) = %g, want constant %g during warmup", step, got, flat)
		}
	}
	prev := d.Rate(1000)
	for _, step := range []int{1001, 2000, 10000, 100000} {
		v := d.Rate(step)
		if v >= prev {
			t.Fatalf("Rate(%d) = %g, want < %g", step, v, prev)
		}
		prev = v
	}
}

func TestCosineAnnealing(t *testing.T) {
	d := NewCosineAnnealing(1, 0, 1000, 0)

	if got := d.Rate(0); math.Abs(got-1) > 1e-12 {
		t.Fatalf("Rate(0) = %g, want 1", got)
	}
	if got := d.Rate(1000); math.Abs(got) > 1e-12 {
		t.Fatalf("Rate(1000) = %g, want 0", got)
	}
	prev := d.Rate(0)
	for step := 1; step <= 1000; step++ {
		v := d.Rate(step)
		if v > prev+1e-12 {
			t.Fatalf("Rate(%d) = %g increased from %g", step, v, prev)
		}
		prev = v
	}
}

func TestCosineAnnealingWarmup(t *testing.T) {
	d := NewCosineAnnealing(1, 0, 1000, 100)

	if got, want := d.Rate(50), 0.5; math.Abs(got-want) > 1e-12 {
		t.Fatalf("Rate(50) = %g, want %g", got, want)
	}
	// The linear ramp should meet the annealing branch continuously.
	ramp := d.Rate(99)
	anneal := d.Rate(100)
	if math.Abs(anneal-ramp) > 0.02 {
		t.Fatalf("warmup/anneal discontinuity: Rate(99) = %g, Rate(100) = %g", ramp, anneal)
	}
}

func TestRNMTPlusDecay(t *testing.T) {
	d := NewRNMTPlusDecay(1, 4, 500, 600000, 1200000)

	if got, want := d.Rate(0), 1.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("Rate(0) = %g, want linear-branch floor %g", got, want)
	}
	prev := d.Rate(600000)
	for step := 600001; step <= 1200000; step += 9973 {
		v := d.Rate(step)
		if v > prev+1e-12 {
			t.Fatalf("Rate(%d) = %g increased from %g", step, v, prev)
		}
		prev = v
	}
}

func TestSchedulesAreDeterministic(t *testing.T) {
	scheds := []Schedule{
		NewNoamDecay(1, 512, 4000),
		NewRsqrtDecay(2, 1000),
		NewCosineAnnealing(1, 0, 1000, 100),
		NewRNMTPlusDecay(1, 4, 500, 600000, 1200000),
	}
	for _, s := range scheds {
		for _, step := range []int{0, 1, 17, 999, 123456} {
			a := s.Rate(step)
			for i := 0; i < 5; i++ {
				if b := s.Rate(step); b != a {
					t.Fatalf("%T.Rate(%d) drifted: %g then %g", s, step, a, b)
				}
			}
		}
	}
}
