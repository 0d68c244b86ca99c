package tf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Element conversion at the session-run boundary. Go tensors carry one of
// the supported element types; graphs may declare narrower ones (DT_HALF,
// DT_BFLOAT16, DT_INT8, DT_INT16). Inputs are converted on the way into a
// native tensor, outputs are widened on the way back out, so callers only
// ever see the wider Go-side types.

// marshalValue returns the value's data encoded as the target native
// element type. For an exact dtype match the returned slice aliases the
// tensor and must be copied before the call returns control to the caller.
func marshalValue(value Value, target DataType) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("nil tensor value")
	}
	if value.DataType() == target {
		return value.rawBytes(), nil
	}

	switch target {
	case DataTypeHalf:
		t, ok := value.(*Tensor[float32])
		if !ok {
			return nil, convertMismatch(value, target)
		}
		src := t.GetData()
		out := make([]byte, len(src)*2)
		for i, f := range src {
			binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(f).Bits())
		}
		return out, nil

	case DataTypeBFloat16:
		t, ok := value.(*Tensor[float32])
		if !ok {
			return nil, convertMismatch(value, target)
		}
		src := t.GetData()
		out := make([]byte, len(src)*2)
		for i, f := range src {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(bfloat16.FromFloat32(f)))
		}
		return out, nil

	case DataTypeInt8:
		t, ok := value.(*Tensor[int32])
		if !ok {
			return nil, convertMismatch(value, target)
		}
		src := t.GetData()
		out := make([]byte, len(src))
		for i, v := range src {
			if v < math.MinInt8 || v > math.MaxInt8 {
				return nil, fmt.Errorf("value %d at index %d overflows %s", v, i, target)
			}
			out[i] = byte(int8(v))
		}
		return out, nil

	case DataTypeInt16:
		t, ok := value.(*Tensor[int32])
		if !ok {
			return nil, convertMismatch(value, target)
		}
		src := t.GetData()
		out := make([]byte, len(src)*2)
		for i, v := range src {
			if v < math.MinInt16 || v > math.MaxInt16 {
				return nil, fmt.Errorf("value %d at index %d overflows %s", v, i, target)
			}
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
		}
		return out, nil

	default:
		return nil, convertMismatch(value, target)
	}
}

func convertMismatch(value Value, target DataType) error {
	return fmt.Errorf("tensor dtype %s does not match graph endpoint dtype %s", value.DataType(), target)
}

// materializeValue builds a Go tensor from a native tensor's element type,
// shape, and raw data. Narrow native types widen to the Go-side type that
// represents them: DT_HALF and DT_BFLOAT16 come back as float32 tensors,
// DT_INT8 and DT_INT16 as int32 tensors.
func materializeValue(dtype DataType, shape Shape, data []byte) (Value, error) {
	switch dtype {
	case DataTypeFloat:
		if err := checkElementSize(dtype, data, 4); err != nil {
			return nil, err
		}
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return NewTensor(shape, out)

	case DataTypeDouble:
		if err := checkElementSize(dtype, data, 8); err != nil {
			return nil, err
		}
		out := make([]float64, len(data)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return NewTensor(shape, out)

	case DataTypeInt32:
		if err := checkElementSize(dtype, data, 4); err != nil {
			return nil, err
		}
		out := make([]int32, len(data)/4)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return NewTensor(shape, out)

	case DataTypeInt64:
		if err := checkElementSize(dtype, data, 8); err != nil {
			return nil, err
		}
		out := make([]int64, len(data)/8)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return NewTensor(shape, out)

	case DataTypeUint8:
		out := make([]uint8, len(data))
		copy(out, data)
		return NewTensor(shape, out)

	case DataTypeBool:
		out := make([]bool, len(data))
		for i, b := range data {
			out[i] = b != 0
		}
		return NewTensor(shape, out)

	case DataTypeHalf:
		if err := checkElementSize(dtype, data, 2); err != nil {
			return nil, err
		}
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
		return NewTensor(shape, out)

	case DataTypeBFloat16:
		if err := checkElementSize(dtype, data, 2); err != nil {
			return nil, err
		}
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = bfloat16.ToFloat32(bfloat16.BF16(binary.LittleEndian.Uint16(data[i*2:])))
		}
		return NewTensor(shape, out)

	case DataTypeInt8:
		out := make([]int32, len(data))
		for i, b := range data {
			out[i] = int32(int8(b))
		}
		return NewTensor(shape, out)

	case DataTypeInt16:
		if err := checkElementSize(dtype, data, 2); err != nil {
			return nil, err
		}
		out := make([]int32, len(data)/2)
		for i := range out {
			out[i] = int32(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
		return NewTensor(shape, out)

	default:
		return nil, fmt.Errorf("unsupported native tensor dtype %s", dtype)
	}
}

func checkElementSize(dtype DataType, data []byte, size int) error {
	if len(data)%size != 0 {
		return fmt.Errorf("native tensor byte size %d is not a multiple of %s element size %d", len(data), dtype, size)
	}
	return nil
}
