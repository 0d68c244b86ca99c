package savedmodel

import (
	"errors"
	"strings"
	"testing"
)

func TestMapDType(t *testing.T) {
	tests := []struct {
		key  string
		want DType
	}{
		{key: "DT_FLOAT", want: DTypeFloat32},
		{key: "DT_HALF", want: DTypeFloat32},
		{key: "DT_BFLOAT16", want: DTypeFloat32},
		{key: "DT_DOUBLE", want: DTypeFloat64},
		{key: "DT_INT8", want: DTypeInt32},
		{key: "DT_INT16", want: DTypeInt32},
		{key: "DT_INT32", want: DTypeInt32},
		{key: "DT_INT64", want: DTypeInt64},
		{key: "DT_UINT8", want: DTypeUint8},
		{key: "DT_BOOL", want: DTypeBool},
		{key: "DT_STRING", want: DTypeString},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			got, err := MapDType(tc.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("MapDType(%q) = %v, want %v", tc.key, got, tc.want)
			}
		})
	}
}

func TestMapDTypeUnsupported(t *testing.T) {
	for _, key := range []string{"DT_COMPLEX64", "DT_RESOURCE", "DT_VARIANT", "DT_UNKNOWN(99)", ""} {
		t.Run(key, func(t *testing.T) {
			_, err := MapDType(key)
			if !errors.Is(err, ErrUnsupportedDType) {
				t.Fatalf("expected ErrUnsupportedDType, got %v", err)
			}
			if key != "" && !strings.Contains(err.Error(), key) {
				t.Fatalf("error %q does not name the offending key %q", err, key)
			}
		})
	}
}

func TestDTypeString(t *testing.T) {
	if got := DTypeFloat32.String(); got != "float32" {
		t.Fatalf("DTypeFloat32.String() = %q, want %q", got, "float32")
	}
	if got := DType(42).String(); got != "dtype(42)" {
		t.Fatalf("DType(42).String() = %q, want %q", got, "dtype(42)")
	}
}
