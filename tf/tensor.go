package tf

import (
	"fmt"
	"unsafe"
)

// Tensor represents a dense tensor with elements of type T. The data is
// plain Go memory: session runs copy it into native TF_Tensor buffers on
// the way in and copy results back out, so a Tensor never outlives or pins
// anything on the native side.
type Tensor[T any] struct {
	shape Shape
	data  []T
	dtype DataType
}

// NewTensor creates a new tensor with the given shape and data. The data
// slice is retained, not copied; the shape is copied.
func NewTensor[T any](shape Shape, data []T) (*Tensor[T], error) {
	dtype, _, err := tensorElementType[T]()
	if err != nil {
		return nil, err
	}

	shapeCopy := cloneShape(shape)
	elementCount, err := shapeElementCount(shapeCopy)
	if err != nil {
		return nil, err
	}
	if len(data) != elementCount {
		return nil, fmt.Errorf("data length mismatch: got %d elements, expected %d for shape %v", len(data), elementCount, shapeCopy)
	}

	return &Tensor[T]{shape: shapeCopy, data: data, dtype: dtype}, nil
}

// NewEmptyTensor creates a new zero-filled tensor with the given shape.
func NewEmptyTensor[T any](shape Shape) (*Tensor[T], error) {
	dtype, _, err := tensorElementType[T]()
	if err != nil {
		return nil, err
	}

	shapeCopy := cloneShape(shape)
	elementCount, err := shapeElementCount(shapeCopy)
	if err != nil {
		return nil, err
	}

	return &Tensor[T]{shape: shapeCopy, data: make([]T, elementCount), dtype: dtype}, nil
}

// GetData returns the tensor data. The slice is the tensor's backing
// storage, not a copy. Calling on a nil receiver returns nil.
func (t *Tensor[T]) GetData() []T {
	if t == nil {
		return nil
	}
	return t.data
}

// Shape returns the tensor shape.
func (t *Tensor[T]) Shape() Shape {
	if t == nil {
		return nil
	}
	return t.shape
}

// DataType returns the element type the tensor carries natively.
func (t *Tensor[T]) DataType() DataType {
	if t == nil {
		return DataTypeInvalid
	}
	return t.dtype
}

// rawBytes exposes the backing data for boundary marshaling.
func (t *Tensor[T]) rawBytes() []byte {
	if t == nil || len(t.data) == 0 {
		return nil
	}

	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(t.data))), len(t.data)*int(unsafe.Sizeof(zero)))
}

func cloneShape(shape Shape) Shape {
	if len(shape) == 0 {
		// Keep scalar tensors as non-nil empty shape (rank 0), not nil.
		return Shape{}
	}

	shapeCopy := make(Shape, len(shape))
	copy(shapeCopy, shape)
	return shapeCopy
}

func shapeElementCount(shape Shape) (int, error) {
	maxInt := int(^uint(0) >> 1)

	count := 1
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("invalid shape dimension at index %d: %d (must be >= 0)", i, dim)
		}

		if dim == 0 {
			count = 0
			continue
		}

		if count == 0 {
			continue
		}

		if dim > int64(maxInt) {
			return 0, fmt.Errorf("shape dimension at index %d is too large: %d", i, dim)
		}

		dimInt := int(dim)
		if count > maxInt/dimInt {
			return 0, fmt.Errorf("shape %v exceeds maximum supported element count", shape)
		}

		count *= dimInt
	}

	return count, nil
}

// ShapeElementCount returns the total element count for a shape.
// Dimensions must be non-negative; zero dimensions produce a count of zero.
func ShapeElementCount(shape Shape) (int, error) {
	return shapeElementCount(shape)
}

// tensorElementType maps Go generic element type T to the TensorFlow
// element type it marshals as. Supported types are float32, float64,
// int32, int64, uint8, and bool.
func tensorElementType[T any]() (DataType, uintptr, error) {
	var zero T

	switch any(zero).(type) {
	case float32:
		return DataTypeFloat, unsafe.Sizeof(zero), nil
	case float64:
		return DataTypeDouble, unsafe.Sizeof(zero), nil
	case int32:
		return DataTypeInt32, unsafe.Sizeof(zero), nil
	case int64:
		return DataTypeInt64, unsafe.Sizeof(zero), nil
	case uint8:
		return DataTypeUint8, unsafe.Sizeof(zero), nil
	case bool:
		return DataTypeBool, unsafe.Sizeof(zero), nil
	default:
		return DataTypeInvalid, 0, fmt.Errorf("unsupported tensor element type %T", zero)
	}
}
