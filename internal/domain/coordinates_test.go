package domain

import (
	"math"
	"testing"
)

func TestDistanceCoincidentPoints(t *testing.T) {
	points := []GeoPoint{
		{Lon: 0, Lat: 0},
		{Lon: 75.7873, Lat: 26.9124},
		{Lon: -180, Lat: -90},
		{Lon: 180, Lat: 90},
	}

	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Distance(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]GeoPoint{
		{{Lon: 77.2090, Lat: 28.6139}, {Lon: 75.7873, Lat: 26.9124}},
		{{Lon: -120.5436, Lat: 38.0675}, {Lon: -120.4561, Lat: 38.1391}},
		{{Lon: 179.9, Lat: 10}, {Lon: -179.9, Lat: 10}},
	}

	for _, p := range pairs {
		ab := Distance(p[0], p[1])
		ba := Distance(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("asymmetric distance: %v vs %v", ab, ba)
		}
	}
}

func TestDistanceOneKilometer(t *testing.T) {
	a := GeoPoint{Lon: 77.0, Lat: 28.0}
	b := GeoPoint{Lon: 77.0, Lat: 28.009}

	d := Distance(a, b)
	if d < 0.95 || d > 1.05 {
		t.Fatalf("distance = %v km, want 1 km +/- 5%%", d)
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// Delhi to Jaipur is roughly 234 km great-circle.
	delhi := GeoPoint{Lon: 77.2090, Lat: 28.6139}
	jaipur := GeoPoint{Lon: 75.7873, Lat: 26.9124}

	d := Distance(delhi, jaipur)
	if math.Abs(d-234) > 5 {
		t.Fatalf("distance = %v km, want ~234 km", d)
	}
}

func TestDistanceNonFinitePropagates(t *testing.T) {
	ok := GeoPoint{Lon: 10, Lat: 10}
	bad := []GeoPoint{
		{Lon: math.NaN(), Lat: 10},
		{Lon: 10, Lat: math.NaN()},
		{Lon: math.Inf(1), Lat: 10},
	}

	for _, b := range bad {
		d := Distance(ok, b)
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			t.Errorf("Distance(%v, %v) = %v, want non-finite", ok, b, d)
		}
	}
}

func TestGeoPointValid(t *testing.T) {
	tests := []struct {
		p    GeoPoint
		want bool
	}{
		{GeoPoint{Lon: 0, Lat: 0}, true},
		{GeoPoint{Lon: 180, Lat: -90}, true},
		{GeoPoint{Lon: 180.1, Lat: 0}, false},
		{GeoPoint{Lon: 0, Lat: 90.5}, false},
		{GeoPoint{Lon: math.NaN(), Lat: 0}, false},
		{GeoPoint{Lon: 0, Lat: math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestGeoPointOffset(t *testing.T) {
	start := GeoPoint{Lon: 77.0, Lat: 28.0}

	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		moved := start.Offset(1.5, bearing)
		d := Distance(start, moved)
		if math.Abs(d-1.5) > 1e-6 {
			t.Errorf("bearing %v: moved %v km, want 1.5", bearing, d)
		}
	}
}
