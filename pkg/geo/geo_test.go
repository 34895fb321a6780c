package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{
			name: "Same Point",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 0},
			want: 0,
		},
		{
			name: "London to Paris",
			p1:   Point{Lat: 51.5074, Lon: -0.1278},
			p2:   Point{Lat: 48.8566, Lon: 2.3522},
			want: 344000, // Approx 344km
		},
		{
			name: "Equator 1 degree",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 1},
			want: 111195, // 2*pi*R/360
		},
		{
			name: "Antipodal",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 180},
			want: math.Pi * EarthRadius,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			if math.IsNaN(got) {
				t.Fatalf("Distance() returned NaN")
			}
			if tt.want == 0 {
				if got != 0 {
					t.Errorf("Distance() = %v, want 0", got)
				}
				return
			}
			// Allow 1% margin of error due to float precision/earth radius var
			margin := tt.want * 0.01
			if math.Abs(got-tt.want) > margin {
				t.Errorf("Distance() = %v, want %v (+/- %v)", got, tt.want, margin)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{{Lat: 40.7128, Lon: -74.0060}, {Lat: 40.7138, Lon: -74.0050}},
		{{Lat: -33.86, Lon: 151.2}, {Lat: 51.5, Lon: -0.12}},
		{{Lat: 89.9, Lon: 10}, {Lat: -89.9, Lon: -170}},
		{{Lat: 0, Lon: 179.9999}, {Lat: 0, Lon: -179.9999}},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1])
		ba := Distance(p[1], p[0])
		if math.Abs(ab-ba) > 1e-6 {
			t.Errorf("Distance not symmetric for %v: %v vs %v", p, ab, ba)
		}
		if d := Distance(p[0], p[0]); d != 0 {
			t.Errorf("Distance(a,a) = %v, want 0", d)
		}
	}
}

func TestBearing(t *testing.T) {
	origin := Point{Lat: 10, Lon: 10}
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"North", Point{Lat: 11, Lon: 10}, 0},
		{"East", Point{Lat: 10, Lon: 11}, 89.9},
		{"South", Point{Lat: 9, Lon: 10}, 180},
		{"West", Point{Lat: 10, Lon: 9}, 270.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			if got < 0 || got >= 360 {
				t.Fatalf("Bearing() = %v, out of [0,360)", got)
			}
			if math.Abs(NormalizeAngle(got-tt.want)) > 0.5 {
				t.Errorf("Bearing() = %v, want ~%v", got, tt.want)
			}
		})
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := map[float64]float64{
		0:    0,
		190:  -170,
		-190: 170,
		540:  180,
		-45:  -45,
	}
	for in, want := range tests {
		if got := NormalizeAngle(in); got != want {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestOffset(t *testing.T) {
	start := Point{Lat: 40.7128, Lon: -74.0060}

	north := Offset(start, 100, 0)
	if d := Distance(start, north); math.Abs(d-100) > 1.0 {
		t.Errorf("100m north offset measured %.2fm", d)
	}
	if north.Lon != start.Lon {
		t.Errorf("north offset changed longitude: %v", north.Lon)
	}

	east := Offset(start, 0, 100)
	if d := Distance(start, east); math.Abs(d-100) > 1.0 {
		t.Errorf("100m east offset measured %.2fm", d)
	}
	if b := Bearing(start, east); math.Abs(b-90) > 0.5 {
		t.Errorf("east offset bearing = %.2f", b)
	}
}

func TestDestinationPoint(t *testing.T) {
	start := Point{Lat: 51.5, Lon: -0.12}
	dest := DestinationPoint(start, 1852, 90)
	if d := Distance(start, dest); math.Abs(d-1852) > 1 {
		t.Errorf("DestinationPoint distance = %.2f, want 1852", d)
	}
}
