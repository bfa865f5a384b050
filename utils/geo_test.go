// civictrack/utils/geo_test.go
package utils

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	if d := Haversine(12.97, 77.59, 12.97, 77.59); d != 0 {
		t.Errorf("Distance to self = %v, want 0", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := Haversine(12.97, 77.59, 28.61, 77.21)
	b := Haversine(28.61, 77.21, 12.97, 77.59)
	if a != b {
		t.Errorf("Asymmetric distances: %v vs %v", a, b)
	}
}

func TestHaversineKnownDistances(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		// One degree of longitude on the equator is about 111.19 km.
		{"one degree on equator", 0, 0, 0, 1, 111.19, 0.1},
		// Bangalore to Delhi, roughly 1740 km.
		{"bangalore to delhi", 12.9716, 77.5946, 28.6139, 77.2090, 1740, 10},
		// Antipodal points are half the Earth's circumference apart.
		{"antipodes", 0, 0, 0, 180, math.Pi * 6371, 0.5},
	}
	for _, tc := range cases {
		got := Haversine(tc.lat1, tc.lng1, tc.lat2, tc.lng2)
		if math.Abs(got-tc.want) > tc.tolerance {
			t.Errorf("%s: distance = %v, want %v +/- %v", tc.name, got, tc.want, tc.tolerance)
		}
	}
}

func TestHaversineSmallOffset(t *testing.T) {
	// The offset used by the nearby-radius tests: just under 5 km.
	d := Haversine(0, 0, 0, 0.0449)
	if d <= 4.9 || d >= 5.0 {
		t.Errorf("Distance for 0.0449 degrees = %v, want just under 5 km", d)
	}
}
