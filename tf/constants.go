package tf

import "fmt"

// Code represents a TensorFlow C API status code (TF_Code).
type Code int32

const (
	CodeOK Code = iota
	CodeCancelled
	CodeUnknown
	CodeInvalidArgument
	CodeDeadlineExceeded
	CodeNotFound
	CodeAlreadyExists
	CodePermissionDenied
	CodeResourceExhausted
	CodeFailedPrecondition
	CodeAborted
	CodeOutOfRange
	CodeUnimplemented
	CodeInternal
	CodeUnavailable
	CodeDataLoss
	CodeUnauthenticated
)

var codeNames = map[Code]string{
	CodeOK:                 "OK",
	CodeCancelled:          "CANCELLED",
	CodeUnknown:            "UNKNOWN",
	CodeInvalidArgument:    "INVALID_ARGUMENT",
	CodeDeadlineExceeded:   "DEADLINE_EXCEEDED",
	CodeNotFound:           "NOT_FOUND",
	CodeAlreadyExists:      "ALREADY_EXISTS",
	CodePermissionDenied:   "PERMISSION_DENIED",
	CodeResourceExhausted:  "RESOURCE_EXHAUSTED",
	CodeFailedPrecondition: "FAILED_PRECONDITION",
	CodeAborted:            "ABORTED",
	CodeOutOfRange:         "OUT_OF_RANGE",
	CodeUnimplemented:      "UNIMPLEMENTED",
	CodeInternal:           "INTERNAL",
	CodeUnavailable:        "UNAVAILABLE",
	CodeDataLoss:           "DATA_LOSS",
	CodeUnauthenticated:    "UNAUTHENTICATED",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(%d)", int32(c))
}

// DataType represents a TensorFlow tensor element type (TF_DataType).
// Values match the TF_DataType enum in the C API, which in turn matches
// the DataType enum serialized inside SavedModel descriptors.
type DataType int32

const (
	DataTypeInvalid    DataType = 0
	DataTypeFloat      DataType = 1
	DataTypeDouble     DataType = 2
	DataTypeInt32      DataType = 3
	DataTypeUint8      DataType = 4
	DataTypeInt16      DataType = 5
	DataTypeInt8       DataType = 6
	DataTypeString     DataType = 7
	DataTypeComplex64  DataType = 8
	DataTypeInt64      DataType = 9
	DataTypeBool       DataType = 10
	DataTypeQInt8      DataType = 11
	DataTypeQUint8     DataType = 12
	DataTypeQInt32     DataType = 13
	DataTypeBFloat16   DataType = 14
	DataTypeQInt16     DataType = 15
	DataTypeQUint16    DataType = 16
	DataTypeUint16     DataType = 17
	DataTypeComplex128 DataType = 18
	DataTypeHalf       DataType = 19
	DataTypeResource   DataType = 20
	DataTypeVariant    DataType = 21
	DataTypeUint32     DataType = 22
	DataTypeUint64     DataType = 23
)

var dataTypeNames = map[DataType]string{
	DataTypeInvalid:    "DT_INVALID",
	DataTypeFloat:      "DT_FLOAT",
	DataTypeDouble:     "DT_DOUBLE",
	DataTypeInt32:      "DT_INT32",
	DataTypeUint8:      "DT_UINT8",
	DataTypeInt16:      "DT_INT16",
	DataTypeInt8:       "DT_INT8",
	DataTypeString:     "DT_STRING",
	DataTypeComplex64:  "DT_COMPLEX64",
	DataTypeInt64:      "DT_INT64",
	DataTypeBool:       "DT_BOOL",
	DataTypeQInt8:      "DT_QINT8",
	DataTypeQUint8:     "DT_QUINT8",
	DataTypeQInt32:     "DT_QINT32",
	DataTypeBFloat16:   "DT_BFLOAT16",
	DataTypeQInt16:     "DT_QINT16",
	DataTypeQUint16:    "DT_QUINT16",
	DataTypeUint16:     "DT_UINT16",
	DataTypeComplex128: "DT_COMPLEX128",
	DataTypeHalf:       "DT_HALF",
	DataTypeResource:   "DT_RESOURCE",
	DataTypeVariant:    "DT_VARIANT",
	DataTypeUint32:     "DT_UINT32",
	DataTypeUint64:     "DT_UINT64",
}

// String returns the canonical DT_* enum key for the data type. Unknown
// values render as DT_UNKNOWN(n) so they stay identifiable in errors
// without ever colliding with a real enum key.
func (dt DataType) String() string {
	if name, ok := dataTypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("DT_UNKNOWN(%d)", int32(dt))
}
