package gradcam

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fakedetect/internal/tensor"
)

func TestGenerateUniformPositiveEvidenceIsDegenerate(t *testing.T) {
	act := tensor.Filled(7, 7, 2048, 1)
	grad := tensor.New(7, 7, 2048)

	m, err := Generate(act, grad)
	require.NoError(t, err)
	assert.Equal(t, 7, m.Rows)
	assert.Equal(t, 7, m.Cols)
	for _, v := range m.Values {
		assert.Equal(t, 0.0, v)
	}
}

func TestGenerateNormalizesToUnitRange(t *testing.T) {
	act := tensor.New(3, 3, 2)
	grad := tensor.Filled(3, 3, 2, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			act.Set(y, x, 0, float64(y*3+x))
			act.Set(y, x, 1, 1)
		}
	}

	m, err := Generate(act, grad)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, m.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, m.At(2, 2), 1e-12)
	assert.InDelta(t, 0.5, m.At(1, 1), 1e-12)
	for _, v := range m.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestGenerateNegativeEvidenceIsZero(t *testing.T) {
	act := tensor.New(4, 4, 3)
	for i := range act.Data {
		act.Data[i] = float64(i%7) + 1
	}
	grad := tensor.Filled(4, 4, 3, -1)

	m, err := Generate(act, grad)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Max())
}

func TestGenerateClipsNegativeCellsBeforeNormalizing(t *testing.T) {
	act := tensor.New(2, 2, 1)
	act.Set(0, 0, 0, -2)
	act.Set(0, 1, 0, -1)
	act.Set(1, 0, 0, 0)
	act.Set(1, 1, 0, 3)
	grad := tensor.Filled(2, 2, 1, 1)

	m, err := Generate(act, grad)
	require.NoError(t, err)
	// Without the clip, -1 would normalise to a third
	assert.Equal(t, []float64{0, 0, 0, 1}, m.Values)
}

func TestGenerateAbsorbsNonFiniteValues(t *testing.T) {
	act := tensor.Filled(2, 2, 1, 1)
	act.Set(0, 0, 0, math.NaN())
	act.Set(1, 1, 0, 3)
	grad := tensor.Filled(2, 2, 1, 1)

	m, err := Generate(act, grad)
	require.NoError(t, err)
	for _, v := range m.Values {
		assert.False(t, math.IsNaN(v))
	}
	assert.Equal(t, 0.0, m.At(0, 0))
	assert.Equal(t, 1.0, m.At(1, 1))
}

func TestGenerateShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		act  tensor.Tensor
		grad tensor.Tensor
	}{
		{"mismatched channels", tensor.New(7, 7, 3), tensor.New(7, 7, 4)},
		{"mismatched spatial", tensor.New(7, 7, 3), tensor.New(6, 7, 3)},
		{"empty activations", tensor.Tensor{}, tensor.New(1, 1, 1)},
		{"short buffer", tensor.Tensor{H: 2, W: 2, C: 1, Data: []float64{1}}, tensor.New(2, 2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.act, tt.grad)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInputShape))

			var shapeErr *InputShapeError
			assert.True(t, errors.As(err, &shapeErr))
		})
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	src := NewSyntheticSource()
	a, err := src.Attribute(t.Context(), nil)
	require.NoError(t, err)

	m1, err := a.Map()
	require.NoError(t, err)
	m2, err := a.Map()
	require.NoError(t, err)
	assert.Equal(t, m1.Values, m2.Values)
}
