package gradcam

import (
	"errors"
	"fmt"
)

// ErrInputShape is matched by every shape or integration error raised while
// combining classifier tensors.
var ErrInputShape = errors.New("input shape error")

// InputShapeError describes a tensor pair that cannot be combined.
type InputShapeError struct {
	Op     string
	Reason string
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is reports a match against ErrInputShape.
func (e *InputShapeError) Is(target error) bool {
	return target == ErrInputShape
}

func shapeErrorf(op, format string, args ...any) error {
	return &InputShapeError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
