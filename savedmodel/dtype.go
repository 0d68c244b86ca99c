package savedmodel

import "fmt"

// DType is the wrapper-level element type vocabulary. Signature tensors
// declare native DT_* types; several native types collapse onto one
// wrapper type because the session-run boundary widens them (half and
// bfloat16 tensors travel as float32, narrow integers as int32).
type DType int

const (
	DTypeInvalid DType = iota
	DTypeFloat32
	DTypeFloat64
	DTypeInt32
	DTypeInt64
	DTypeUint8
	DTypeBool
	DTypeString
)

var dtypeNames = map[DType]string{
	DTypeInvalid: "invalid",
	DTypeFloat32: "float32",
	DTypeFloat64: "float64",
	DTypeInt32:   "int32",
	DTypeInt64:   "int64",
	DTypeUint8:   "uint8",
	DTypeBool:    "bool",
	DTypeString:  "string",
}

func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// mappedDTypes maps native DT_* enum keys onto wrapper types.
var mappedDTypes = map[string]DType{
	"DT_FLOAT":    DTypeFloat32,
	"DT_HALF":     DTypeFloat32,
	"DT_BFLOAT16": DTypeFloat32,
	"DT_DOUBLE":   DTypeFloat64,
	"DT_INT8":     DTypeInt32,
	"DT_INT16":    DTypeInt32,
	"DT_INT32":    DTypeInt32,
	"DT_INT64":    DTypeInt64,
	"DT_UINT8":    DTypeUint8,
	"DT_BOOL":     DTypeBool,
	"DT_STRING":   DTypeString,
}

// MapDType maps a native DT_* enum key onto its wrapper type. Keys without
// a wrapper representation return ErrUnsupportedDType naming the key, so a
// signature carrying one fails loudly at inspection time rather than at
// the first predict.
func MapDType(key string) (DType, error) {
	if mapped, ok := mappedDTypes[key]; ok {
		return mapped, nil
	}
	return DTypeInvalid, fmt.Errorf("%w: %s", ErrUnsupportedDType, key)
}
