package core

import (
	"math"
	"testing"
)

func TestFormatFixed(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   string
	}{
		{v: 0, places: 1, want: "0.0"},
		{v: 2, places: 1, want: "2.0"},
		{v: 45, places: 0, want: "45"},
		{v: 2.5, places: 0, want: "3"},
		{v: 0.25, places: 1, want: "0.3"},
		{v: 0.15, places: 1, want: "0.1"},  // stored as 0.1499…
		{v: 1.005, places: 2, want: "1.00"}, // stored as 1.00499…
		{v: 33.333333, places: 1, want: "33.3"},
		{v: -1.25, places: 1, want: "-1.3"},
		{v: math.Inf(1), places: 1, want: "+Inf"},
	}
	for _, tt := range tests {
		if got := FormatFixed(tt.v, tt.places); got != tt.want {
			t.Errorf("FormatFixed(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    int64
		wantErr bool
	}{
		{name: "valid", s: "42", want: 42},
		{name: "spaces", s: " 7 ", want: 7},
		{name: "not a number", s: "abc", wantErr: true},
		{name: "empty", s: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.s)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseID() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseID() = %v, want %v", got, tt.want)
			}
		})
	}
}
