// Package tensor provides a minimal dense float64 tensor for convolutional
// feature maps. Data is a flat row-major buffer in HWC order, matching the
// channels-last layout classifiers emit for a single image.
package tensor

import (
	"encoding/json"
	"fmt"
)

// Tensor is a 3-D (height, width, channels) array backed by a flat buffer.
type Tensor struct {
	H, W, C int
	Data    []float64
}

// New allocates a zero-filled tensor.
func New(h, w, c int) Tensor {
	if h < 0 || w < 0 || c < 0 {
		return Tensor{}
	}
	return Tensor{H: h, W: w, C: c, Data: make([]float64, h*w*c)}
}

// Filled allocates a tensor with every element set to v.
func Filled(h, w, c int, v float64) Tensor {
	t := New(h, w, c)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// FromData wraps an existing buffer. The buffer is not copied.
func FromData(h, w, c int, data []float64) (Tensor, error) {
	if h <= 0 || w <= 0 || c <= 0 {
		return Tensor{}, fmt.Errorf("invalid tensor shape (%d,%d,%d)", h, w, c)
	}
	if len(data) != h*w*c {
		return Tensor{}, fmt.Errorf("tensor data length %d does not match shape (%d,%d,%d)", len(data), h, w, c)
	}
	return Tensor{H: h, W: w, C: c, Data: data}, nil
}

// Shape returns (H, W, C).
func (t Tensor) Shape() [3]int {
	return [3]int{t.H, t.W, t.C}
}

// Valid reports whether the shape is positive and agrees with the buffer length.
func (t Tensor) Valid() bool {
	return t.H > 0 && t.W > 0 && t.C > 0 && len(t.Data) == t.H*t.W*t.C
}

// SameShape reports whether two tensors have identical dimensions.
func (t Tensor) SameShape(o Tensor) bool {
	return t.H == o.H && t.W == o.W && t.C == o.C
}

// Index returns the flat offset of element (y, x, c).
func (t Tensor) Index(y, x, c int) int {
	return (y*t.W+x)*t.C + c
}

// At returns element (y, x, c).
func (t Tensor) At(y, x, c int) float64 {
	return t.Data[t.Index(y, x, c)]
}

// Set stores v at (y, x, c).
func (t Tensor) Set(y, x, c int, v float64) {
	t.Data[t.Index(y, x, c)] = v
}

// Pixel returns the channel vector at spatial position (y, x).
// The returned slice aliases the tensor buffer.
func (t Tensor) Pixel(y, x int) []float64 {
	off := t.Index(y, x, 0)
	return t.Data[off : off+t.C]
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return Tensor{H: t.H, W: t.W, C: t.C, Data: data}
}

// wireTensor is the JSON form exchanged with classifier services:
// {"shape": [h, w, c], "data": [...]}.
type wireTensor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// MarshalJSON encodes the tensor as {"shape": [...], "data": [...]}.
func (t Tensor) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTensor{Shape: []int{t.H, t.W, t.C}, Data: t.Data})
}

// UnmarshalJSON decodes the wire form. A leading batch dimension of 1
// (shape [1, h, w, c]) is accepted and dropped.
func (t *Tensor) UnmarshalJSON(b []byte) error {
	var w wireTensor
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	shape := w.Shape
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return fmt.Errorf("tensor shape must have 3 dimensions, got %v", w.Shape)
	}
	decoded, err := FromData(shape[0], shape[1], shape[2], w.Data)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}
