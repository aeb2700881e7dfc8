package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestDistanceEquatorDegree(t *testing.T) {
	// One degree of longitude on the equator is ~111 km.
	d := Distance(orb.Point{0, 0}, orb.Point{1, 0})
	if d < 110_000 || d > 112_000 {
		t.Errorf("Distance = %f, want ~111km", d)
	}
}

func TestDistanceZero(t *testing.T) {
	p := orb.Point{-77.02, 38.91}
	if d := Distance(p, p); d != 0 {
		t.Errorf("Distance(p, p) = %f, want 0", d)
	}
}

func TestBearingCardinal(t *testing.T) {
	tests := []struct {
		name string
		a, b orb.Point
		want float64
	}{
		{"north", orb.Point{0, 0}, orb.Point{0, 1}, 0},
		{"east", orb.Point{0, 0}, orb.Point{1, 0}, 90},
		{"south", orb.Point{0, 1}, orb.Point{0, 0}, 180},
		{"west", orb.Point{1, 0}, orb.Point{0, 0}, 270},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Bearing(tc.a, tc.b)
			if math.Abs(got-tc.want) > 0.5 {
				t.Errorf("Bearing = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestBearingRange(t *testing.T) {
	b := Bearing(orb.Point{-77.0, 38.9}, orb.Point{-77.1, 38.8})
	if b < 0 || b >= 360 {
		t.Errorf("Bearing = %f, want [0, 360)", b)
	}
}

func TestAngleDiff(t *testing.T) {
	tests := []struct {
		a2, a1, want float64
	}{
		{10, 0, 10},
		{0, 10, -10},
		{350, 10, -20},
		{10, 350, 20},
		{180, 0, -180},
		{90, 270, -180},
		{45, 45, 0},
	}
	for _, tc := range tests {
		got := AngleDiff(tc.a2, tc.a1)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("AngleDiff(%f, %f) = %f, want %f", tc.a2, tc.a1, got, tc.want)
		}
	}
}
