package tagset

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "empty", in: []string{}, want: nil},
		{name: "single", in: []string{"serve"}, want: []string{"serve"}},
		{name: "sorted", in: []string{"serve", "gpu"}, want: []string{"gpu", "serve"}},
		{name: "duplicates dropped", in: []string{"serve", "serve", "gpu"}, want: []string{"gpu", "serve"}},
		{name: "whitespace trimmed", in: []string{"  serve ", "\tgpu"}, want: []string{"gpu", "serve"}},
		{name: "empty entries dropped", in: []string{"", "serve", "   "}, want: []string{"serve"}},
		{name: "all empty", in: []string{"", "  "}, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeDoesNotModifyInput(t *testing.T) {
	in := []string{"serve", "gpu"}
	Normalize(in)
	if in[0] != "serve" || in[1] != "gpu" {
		t.Fatalf("input modified: %v", in)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{name: "identical", a: []string{"serve"}, b: []string{"serve"}, want: true},
		{name: "permuted", a: []string{"serve", "gpu"}, b: []string{"gpu", "serve"}, want: true},
		{name: "duplicates ignored", a: []string{"serve", "serve"}, b: []string{"serve"}, want: true},
		{name: "whitespace ignored", a: []string{" serve "}, b: []string{"serve"}, want: true},
		{name: "both empty", a: nil, b: []string{}, want: true},
		{name: "subset", a: []string{"serve"}, b: []string{"serve", "gpu"}, want: false},
		{name: "different", a: []string{"serve"}, b: []string{"train"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestJoinIsCanonical(t *testing.T) {
	a := Join([]string{"serve", "gpu", "serve"})
	b := Join([]string{"gpu", "serve"})
	if a != b {
		t.Fatalf("permuted tag sets join differently: %q vs %q", a, b)
	}
	if a != "gpu,serve" {
		t.Fatalf("Join = %q, want %q", a, "gpu,serve")
	}
	if Join(nil) != "" {
		t.Fatalf("Join(nil) = %q, want empty", Join(nil))
	}
}

func TestParse(t *testing.T) {
	got := Parse("serve, gpu,,serve")
	want := []string{"gpu", "serve"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
}
