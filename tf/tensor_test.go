package tf

import (
	"strings"
	"testing"
	"unsafe"
)

func TestTensorElementType(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() (DataType, uintptr, error)
		wantType  DataType
		wantSize  uintptr
		expectErr bool
	}{
		{
			name: "float32",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[float32]()
			},
			wantType: DataTypeFloat,
			wantSize: unsafe.Sizeof(float32(0)),
		},
		{
			name: "float64",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[float64]()
			},
			wantType: DataTypeDouble,
			wantSize: unsafe.Sizeof(float64(0)),
		},
		{
			name: "int32",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[int32]()
			},
			wantType: DataTypeInt32,
			wantSize: unsafe.Sizeof(int32(0)),
		},
		{
			name: "int64",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[int64]()
			},
			wantType: DataTypeInt64,
			wantSize: unsafe.Sizeof(int64(0)),
		},
		{
			name: "uint8",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[uint8]()
			},
			wantType: DataTypeUint8,
			wantSize: unsafe.Sizeof(uint8(0)),
		},
		{
			name: "bool",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[bool]()
			},
			wantType: DataTypeBool,
			wantSize: unsafe.Sizeof(false),
		},
		{
			name: "unsupported uint16",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[uint16]()
			},
			expectErr: true,
		},
		{
			name: "unsupported string",
			fn: func() (DataType, uintptr, error) {
				return tensorElementType[string]()
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotSize, err := tt.fn()
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "unsupported tensor element type") {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if gotType != tt.wantType {
				t.Fatalf("unexpected tensor type: got %v, want %v", gotType, tt.wantType)
			}

			if gotSize != tt.wantSize {
				t.Fatalf("unexpected tensor size: got %d, want %d", gotSize, tt.wantSize)
			}
		})
	}
}

func TestShapeElementCount(t *testing.T) {
	tests := []struct {
		name      string
		shape     Shape
		wantCount int
		wantErr   string
	}{
		{
			name:      "scalar shape",
			shape:     Shape{},
			wantCount: 1,
		},
		{
			name:      "standard shape",
			shape:     Shape{2, 3, 4},
			wantCount: 24,
		},
		{
			name:      "zero dimension",
			shape:     Shape{2, 0, 4},
			wantCount: 0,
		},
		{
			name:    "negative dimension",
			shape:   Shape{2, -1},
			wantErr: "must be >= 0",
		},
		{
			name:    "product overflow",
			shape:   Shape{1 << 40, 1 << 40},
			wantErr: "exceeds maximum supported element count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := shapeElementCount(tt.shape)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantCount {
				t.Fatalf("unexpected element count: got %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestNewTensor(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	tensor, err := NewTensor(Shape{2, 3}, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tensor.DataType() != DataTypeFloat {
		t.Errorf("expected DT_FLOAT, got %v", tensor.DataType())
	}
	if shape := tensor.Shape(); len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Errorf("unexpected shape: %v", shape)
	}

	// The data is retained, not copied
	data[0] = 42
	if got := tensor.GetData()[0]; got != 42 {
		t.Errorf("expected tensor to share backing data, got %v", got)
	}
}

func TestNewTensorCopiesShape(t *testing.T) {
	shape := Shape{2, 3}
	tensor, err := NewTensor(shape, make([]float32, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shape[0] = 99
	if got := tensor.Shape()[0]; got != 2 {
		t.Errorf("expected tensor shape to be independent of the input slice, got %d", got)
	}
}

func TestNewTensorDataLengthMismatch(t *testing.T) {
	_, err := NewTensor(Shape{2, 3}, []float32{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for mismatched data length")
	}
	if !strings.Contains(err.Error(), "data length mismatch") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewTensorUnsupportedElementType(t *testing.T) {
	_, err := NewTensor(Shape{1}, []uint16{1})
	if err == nil {
		t.Fatal("expected error for unsupported element type")
	}
	if !strings.Contains(err.Error(), "unsupported tensor element type") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewTensorScalar(t *testing.T) {
	tensor, err := NewTensor(nil, []float32{3.14})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shape := tensor.Shape()
	if shape == nil {
		t.Fatal("expected scalar tensor to report a non-nil rank-0 shape")
	}
	if len(shape) != 0 {
		t.Errorf("expected rank 0, got %v", shape)
	}
}

func TestNewEmptyTensor(t *testing.T) {
	tensor, err := NewEmptyTensor[int64](Shape{2, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := tensor.GetData()
	if len(data) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(data))
	}
	for i, v := range data {
		if v != 0 {
			t.Errorf("expected zero element at %d, got %d", i, v)
		}
	}
	if tensor.DataType() != DataTypeInt64 {
		t.Errorf("expected DT_INT64, got %v", tensor.DataType())
	}
}

func TestTensorNilReceiver(t *testing.T) {
	var tensor *Tensor[float32]

	if got := tensor.GetData(); got != nil {
		t.Errorf("expected nil data, got %v", got)
	}
	if got := tensor.Shape(); got != nil {
		t.Errorf("expected nil shape, got %v", got)
	}
	if got := tensor.DataType(); got != DataTypeInvalid {
		t.Errorf("expected DT_INVALID, got %v", got)
	}
	if got := tensor.rawBytes(); got != nil {
		t.Errorf("expected nil raw bytes, got %v", got)
	}
}

func TestTensorRawBytes(t *testing.T) {
	tensor, err := NewTensor(Shape{2}, []int32{1, -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := tensor.rawBytes()
	if len(raw) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(raw))
	}

	empty, err := NewTensor(Shape{0}, []int32{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := empty.rawBytes(); got != nil {
		t.Errorf("expected nil raw bytes for empty tensor, got %v", got)
	}
}

func TestNewShape(t *testing.T) {
	shape := NewShape(1, 224, 224, 3)
	if len(shape) != 4 {
		t.Fatalf("expected 4 dimensions, got %d", len(shape))
	}
	if shape[0] != 1 || shape[1] != 224 || shape[2] != 224 || shape[3] != 3 {
		t.Errorf("unexpected dimensions: %v", shape)
	}
}
