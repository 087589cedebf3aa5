package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVectorFromString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []float32
		wantErr bool
	}{
		{name: "plain", in: "[0.1,0.2,0.3]", want: []float32{0.1, 0.2, 0.3}},
		{name: "spaces after commas", in: "[0.1, -0.25, 3]", want: []float32{0.1, -0.25, 3}},
		{name: "exponent notation", in: "[1e-05,2.5e+02]", want: []float32{1e-05, 2.5e+02}},
		{name: "empty string", in: "", want: nil},
		{name: "empty brackets", in: "[]", want: nil},
		{name: "not a number", in: "[0.1,abc]", wantErr: true},
		{name: "embedded space in component", in: "[0. 1]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vectorFromString(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("vectorFromString(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("vectorFromString(%q): %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("vectorFromString(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestVectorStringRoundTrip(t *testing.T) {
	in := []float32{0.005, -1.5, 42, 1e-06}
	got, err := vectorFromString(vectorToString(in))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
