package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
		want float64
	}{
		{name: "same point", a: Point{Lat: 40, Lng: -74}, b: Point{Lat: 40, Lng: -74}, want: 0},
		{name: "one degree of longitude at equator", a: Point{Lat: 0, Lng: 0}, b: Point{Lat: 0, Lng: 1}, want: 111.19},
		{name: "one degree of latitude", a: Point{Lat: 0, Lng: 0}, b: Point{Lat: 1, Lng: 0}, want: 111.19},
		{name: "antipodal", a: Point{Lat: 0, Lng: 0}, b: Point{Lat: 0, Lng: 180}, want: math.Pi * EarthRadiusKm},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceKm(tc.a, tc.b)
			if math.Abs(got-tc.want) > 0.01 {
				t.Fatalf("expected %.2f km, got %.4f", tc.want, got)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := Point{Lat: 37.7749, Lng: -122.4194}
	b := Point{Lat: 34.0522, Lng: -118.2437}
	if ab, ba := DistanceKm(a, b), DistanceKm(b, a); math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
	}
	if d := DistanceKm(a, b); d < 550 || d > 570 {
		t.Fatalf("unexpected SF-LA distance %f", d)
	}
}

func TestPointValidate(t *testing.T) {
	if err := (Point{Lat: 91, Lng: 0}).Validate(); err == nil {
		t.Fatal("expected latitude error")
	}
	if err := (Point{Lat: 0, Lng: -181}).Validate(); err == nil {
		t.Fatal("expected longitude error")
	}
	if err := (Point{Lat: math.NaN(), Lng: 0}).Validate(); err == nil {
		t.Fatal("expected NaN error")
	}
	if err := (Point{Lat: -90, Lng: 180}).Validate(); err != nil {
		t.Fatalf("boundary values should be valid: %v", err)
	}
}
