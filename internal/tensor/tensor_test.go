package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 5, Shape{5}.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	assert.NoError(t, Shape{2, 3}.Validate())
	assert.Error(t, Shape{2, -1}.Validate())
	assert.Error(t, Shape{0, 3}.Validate())
}

func TestShape_Equal(t *testing.T) {
	assert.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	assert.False(t, Shape{2, 3}.Equal(Shape{2, 3, 1}))
}

func TestFromSlice_LengthMismatch(t *testing.T) {
	_, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2}, CPU)
	assert.Error(t, err)
}

func TestSparseRows(t *testing.T) {
	g, err := SparseRows(Shape{10, 3}, []int{2, 7}, []float32{1, 2, 3, 4, 5, 6}, CPU)
	require.NoError(t, err)
	assert.True(t, g.IsSparse())
	assert.Equal(t, []int{2, 7}, g.RowIndex())
	assert.Equal(t, 3, g.RowSize())
	assert.Equal(t, 30, g.NumElements())
}

func TestSparseRows_BadData(t *testing.T) {
	_, err := SparseRows(Shape{10, 3}, []int{2, 7}, []float32{1, 2, 3}, CPU)
	assert.Error(t, err)

	_, err = SparseRows(Shape{10}, []int{2}, []float32{1}, CPU)
	assert.Error(t, err)
}

func TestTensor_RMS(t *testing.T) {
	x, err := FromSlice([]float32{3, 4}, Shape{2}, CPU)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(12.5), x.RMS(), 1e-9)
	assert.InDelta(t, 25.0, x.SquaredSum(), 1e-9)
}

func TestTensor_AllFinite(t *testing.T) {
	x, _ := FromSlice([]float32{1, 2}, Shape{2}, CPU)
	assert.True(t, x.AllFinite())

	x.Data()[1] = float32(math.Inf(1))
	assert.False(t, x.AllFinite())

	x.Data()[1] = float32(math.NaN())
	assert.False(t, x.AllFinite())
}

func TestTensor_CloneIsDeep(t *testing.T) {
	x, _ := FromSlice([]float32{1, 2}, Shape{2}, CPU)
	c := x.Clone()
	c.Data()[0] = 9
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestTensor_CopyFrom(t *testing.T) {
	dst := Zeros(Shape{2}, CPU)
	src, _ := FromSlice([]float32{5, 6}, Shape{2}, CPU)
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{5, 6}, dst.Data())

	bad := Zeros(Shape{3}, CPU)
	assert.Error(t, dst.CopyFrom(bad))
}

func TestTensor_Scale(t *testing.T) {
	x, _ := FromSlice([]float32{2, 4}, Shape{2}, CPU)
	x.Scale(0.5)
	assert.Equal(t, []float32{1, 2}, x.Data())
}
