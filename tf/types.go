package tf

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape represents the shape of a tensor
type Shape []int64

// NewShape creates a new shape from dimensions
func NewShape(dims ...int64) Shape {
	return Shape(dims)
}

// NodeSpec identifies one graph endpoint for a session run: a node
// reference as recorded in a SavedModel signature (optionally carrying a
// ":<output-index>" suffix) plus the element type the graph declares at
// that endpoint.
type NodeSpec struct {
	Name  string
	DType DataType
}

// Value is the interface implemented by all tensor values that cross the
// session-run boundary. Only tensors created by this package implement it.
type Value interface {
	// DataType returns the element type the value carries natively.
	DataType() DataType
	// Shape returns the value's dimensions.
	Shape() Shape

	// rawBytes exposes the backing data for boundary marshaling. The
	// returned slice aliases the tensor; callers copy, never retain.
	rawBytes() []byte
}

// parseNodeName splits a node reference into its operation name and output
// index. A reference without a ":<index>" suffix addresses output 0.
// Operation names cannot contain ':', so the last colon is the separator.
func parseNodeName(name string) (string, int32, error) {
	idx := strings.LastIndexByte(name, ':')
	if idx < 0 {
		return name, 0, nil
	}
	if idx == 0 || idx == len(name)-1 {
		return "", 0, fmt.Errorf("malformed node reference %q", name)
	}

	output, err := strconv.ParseInt(name[idx+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed output index in node reference %q: %w", name, err)
	}
	if output < 0 {
		return "", 0, fmt.Errorf("negative output index in node reference %q", name)
	}

	return name[:idx], int32(output), nil
}
