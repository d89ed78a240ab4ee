package ndarray

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

func TestContiguousStrides(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Strides{12, 4}, ContiguousStrides(Shape{2, 3}, 4, C))
	assert.Equal(t, Strides{4, 8}, ContiguousStrides(Shape{2, 3}, 4, F))
	assert.Equal(t, Strides{}, ContiguousStrides(Shape{}, 8, C))
	assert.Equal(t, Strides{48, 24, 8}, ContiguousStrides(Shape{2, 2, 3}, 8, C))
}

func TestLayoutFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		shape   Shape
		strides Strides
		want    Flags
	}{
		{"c order 2d", Shape{2, 3}, Strides{12, 4}, Flags{CContiguous: true}},
		{"f order 2d", Shape{2, 3}, Strides{4, 8}, Flags{FContiguous: true}},
		{"1d is both", Shape{5}, Strides{4}, Flags{CContiguous: true, FContiguous: true}},
		{"0d is both", Shape{}, Strides{}, Flags{CContiguous: true, FContiguous: true}},
		{"unit dims ignored", Shape{1, 4, 1}, Strides{999, 4, -7}, Flags{CContiguous: true, FContiguous: true}},
		{"empty is both", Shape{0, 3}, Strides{12, 4}, Flags{CContiguous: true, FContiguous: true}},
		{"stepped is neither", Shape{3}, Strides{8}, Flags{}},
		{"broadcast is neither", Shape{2, 3}, Strides{0, 4}, Flags{}},
		{"sliced rows", Shape{2, 2}, Strides{12, 4}, Flags{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LayoutFlags(tc.shape, tc.strides, 4))
		})
	}
}

func TestParseShape(t *testing.T) {
	t.Parallel()

	got, err := ParseShape("3,3")
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 3}, got)

	got, err = ParseShape("(2, 0, 4)")
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 0, 4}, got)

	got, err = ParseShape("")
	require.NoError(t, err)
	assert.Equal(t, Shape{}, got)

	_, err = ParseShape("2,-1")
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestBroadcastStrides(t *testing.T) {
	t.Parallel()

	got, err := BroadcastStrides(Shape{3}, Strides{4}, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Strides{0, 4}, got)

	got, err = BroadcastStrides(Shape{2, 1}, Strides{4, 4}, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Strides{4, 0}, got)

	_, err = BroadcastStrides(Shape{2}, Strides{4}, Shape{2, 3})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = BroadcastStrides(Shape{2, 3}, Strides{12, 4}, Shape{3})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFromSliceOrders(t *testing.T) {
	t.Parallel()

	data := []float32{1, 2, 3, 4, 5, 6}
	c, err := FromSlice(device.CPU0, data, Shape{2, 3}, C)
	require.NoError(t, err)
	f, err := FromSlice(device.CPU0, data, Shape{2, 3}, F)
	require.NoError(t, err)

	assert.True(t, c.Flags().CContiguous)
	assert.False(t, c.Flags().FContiguous)
	assert.True(t, f.Flags().FContiguous)
	assert.False(t, f.Flags().CContiguous)

	// Same logical values, different physical layout.
	cv, err := ToSlice[float32](c)
	require.NoError(t, err)
	fv, err := ToSlice[float32](f)
	require.NoError(t, err)
	assert.Equal(t, data, cv)
	assert.Equal(t, data, fv)

	raw, err := Clone(f)
	require.NoError(t, err)
	assert.True(t, raw.Flags().CContiguous)
	assert.NotEqual(t, f.Storage().Bytes(), raw.Storage().Bytes())
}

func TestFromSliceLengthMismatch(t *testing.T) {
	t.Parallel()
	_, err := FromSlice(device.CPU0, []int32{1, 2, 3}, Shape{2, 2}, C)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestToSliceDTypeMismatch(t *testing.T) {
	t.Parallel()
	a, err := FromSlice(device.CPU0, []int32{1, 2}, Shape{2}, C)
	require.NoError(t, err)
	_, err = ToSlice[float32](a)
	require.ErrorIs(t, err, ErrDTypeMismatch)
}

func TestTransposeAndSlice(t *testing.T) {
	t.Parallel()

	a, err := FromSlice(device.CPU0, []int64{0, 1, 2, 3, 4, 5}, Shape{2, 3}, C)
	require.NoError(t, err)

	at, err := a.T()
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, at.Shape())
	assert.True(t, at.Flags().FContiguous)
	assert.False(t, at.Flags().CContiguous)
	vals, err := ToSlice[int64](at)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3, 1, 4, 2, 5}, vals)

	col, err := a.Slice(1, 0, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2}, col.Shape())
	assert.False(t, col.Flags().Contiguous())
	vals, err = ToSlice[int64](col)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 2, 3, 5}, vals)

	row, err := a.Slice(0, -1, 2, 1)
	require.NoError(t, err)
	vals, err = ToSlice[int64](row)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5}, vals)
	assert.True(t, row.Flags().CContiguous)

	empty, err := a.Slice(0, 2, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Size())

	_, err = a.Transpose(0, 0)
	require.Error(t, err)
	_, err = a.Slice(0, 0, 1, 0)
	require.Error(t, err)
}

func TestReshape(t *testing.T) {
	t.Parallel()

	a, err := Zeros(device.CPU0, Shape{2, 3}, dtype.Float32, C)
	require.NoError(t, err)

	r, err := a.Reshape(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, Strides{8, 4}, r.Strides())
	assert.True(t, r.SharesStorage(a))

	_, err = a.Reshape(Shape{4})
	require.ErrorIs(t, err, ErrInvalidShape)

	at, err := a.T()
	require.NoError(t, err)
	_, err = at.Reshape(Shape{6})
	require.ErrorIs(t, err, ErrNotContiguous)
}

func TestNewViewBounds(t *testing.T) {
	t.Parallel()

	store := NewHostStorage(device.CPU0, 16)
	_, err := NewView(store, Shape{2, 2}, Strides{8, 4}, 0, dtype.Float32)
	require.NoError(t, err)

	_, err = NewView(store, Shape{2, 2}, Strides{8, 4}, 4, dtype.Float32)
	require.ErrorIs(t, err, ErrStorageTooSmall)

	_, err = NewView(store, Shape{4}, Strides{-4}, 0, dtype.Float32)
	require.ErrorIs(t, err, ErrStorageTooSmall)

	neg, err := NewView(store, Shape{4}, Strides{-4}, 12, dtype.Float32)
	require.NoError(t, err)
	assert.False(t, neg.Flags().Contiguous())
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	a, err := Describe(device.CUDADevice(1), Shape{3, 3}, nil, dtype.Float32)
	require.NoError(t, err)
	assert.Equal(t, device.CUDADevice(1), a.Device())
	assert.Equal(t, 36, a.NBytes())
	assert.True(t, a.Flags().CContiguous)
	assert.Nil(t, a.Storage().Bytes())

	_, err = a.Data().Span(4)
	require.ErrorIs(t, err, ErrNotHostMemory)
}

func TestPointerSpan(t *testing.T) {
	t.Parallel()

	store := NewHostStorage(device.CPU0, 8)
	p := Pointer{Storage: store, Offset: 4}
	b, err := p.Span(4)
	require.NoError(t, err)
	assert.Len(t, b, 4)

	_, err = p.Span(5)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = Pointer{}.Span(1)
	require.ErrorIs(t, err, ErrNoStorage)
}

func TestIterateVisitsRowMajor(t *testing.T) {
	t.Parallel()

	var got [][2]int
	Iterate(Shape{2, 2}, []int{0, 100}, []Strides{{10, 1}, {1, 10}}, func(off []int) {
		got = append(got, [2]int{off[0], off[1]})
	})
	assert.Equal(t, [][2]int{{0, 100}, {1, 110}, {10, 101}, {11, 111}}, got)

	calls := 0
	Iterate(Shape{}, []int{7}, []Strides{{}}, func(off []int) {
		calls++
		assert.Equal(t, 7, off[0])
	})
	assert.Equal(t, 1, calls)

	Iterate(Shape{3, 0}, []int{0}, []Strides{{0, 0}}, func([]int) {
		t.Fatal("empty shape must not visit anything")
	})
}

func TestScalarsRoundTrip(t *testing.T) {
	t.Parallel()

	a, err := Zeros(device.CPU0, Shape{2, 2}, dtype.Int16, F)
	require.NoError(t, err)
	in := []dtype.Scalar{dtype.IntScalar(1), dtype.FloatScalar(2.9), dtype.BoolScalar(true), dtype.UintScalar(4)}
	require.NoError(t, SetScalars(a, in))

	got, err := ToSlice[int16](a)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 1, 4}, got)

	out, err := Scalars(a)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, int64(2), out[1].Int64())

	require.ErrorIs(t, SetScalars(a, in[:3]), ErrInvalidShape)
}

func TestShapeBytesOverflow(t *testing.T) {
	t.Parallel()

	n, err := Shape{2, 3}.Bytes(4)
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = Shape{0, 1 << 62, 1 << 62}.Bytes(8)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = Shape{2, -1}.Bytes(4)
	require.ErrorIs(t, err, ErrInvalidShape)

	// The element product wraps to 5 without checking.
	huge := Shape{6148914691236517207, 3}
	_, err = huge.Bytes(1)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = Shape{1 << 62}.Bytes(4)
	require.ErrorIs(t, err, ErrInvalidShape)

	_, err = Zeros(device.Host(0), huge, dtype.Float32, C)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = Zeros(device.Host(0), Shape{1 << 62}, dtype.Float32, C)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = Describe(device.CUDADevice(0), huge, nil, dtype.Float32)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = New(NewHostStorage(device.CPU0, 20), huge, dtype.Float32, C)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = LayoutStrides(Shape{1 << 61}, 4, Strided)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestViewSpanOverflow(t *testing.T) {
	t.Parallel()

	store := NewHostStorage(device.CPU0, 16)
	_, err := NewView(store, Shape{4}, Strides{1 << 62}, 0, dtype.Float32)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = NewView(store, Shape{4}, Strides{-(1 << 62)}, 8, dtype.Float32)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = Describe(device.CPU0, Shape{2, 2}, Strides{1 << 62, 1 << 62}, dtype.Float32)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestLayoutStrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		layout string
		want   Strides
	}{
		{"", Strides{12, 4}},
		{"C", Strides{12, 4}},
		{"f", Strides{4, 8}},
		{"strided", Strides{24, 8}},
		{" Strided ", Strides{24, 8}},
	}
	for _, tc := range tests {
		got, err := LayoutStrides(Shape{2, 3}, 4, tc.layout)
		require.NoError(t, err, tc.layout)
		assert.Equal(t, tc.want, got, tc.layout)
	}

	s, err := LayoutStrides(Shape{3, 3}, 4, Strided)
	require.NoError(t, err)
	a, err := Describe(device.CPU0, Shape{3, 3}, s, dtype.Float32)
	require.NoError(t, err)
	assert.False(t, a.Flags().Contiguous())

	_, err = LayoutStrides(Shape{2}, 4, "K")
	require.Error(t, err)
}

type countedStorage struct {
	*HostStorage
	frees int
	err   error
}

func (s *countedStorage) Free() error {
	s.frees++
	return s.err
}

func TestRelease(t *testing.T) {
	t.Parallel()

	shared := &countedStorage{HostStorage: NewHostStorage(device.CPU0, 24)}
	failing := &countedStorage{HostStorage: NewHostStorage(device.CPU0, 4), err: errors.New("device lost")}

	a, err := New(shared, Shape{2, 3}, dtype.Float32, C)
	require.NoError(t, err)
	view, err := a.T()
	require.NoError(t, err)
	b, err := New(failing, Shape{1}, dtype.Float32, C)
	require.NoError(t, err)
	plain, err := Zeros(device.CPU0, Shape{2}, dtype.Int8, C)
	require.NoError(t, err)

	err = Release(a, nil, view, b, plain)
	require.ErrorContains(t, err, "device lost")
	assert.Equal(t, 1, shared.frees)
	assert.Equal(t, 1, failing.frees)
	assert.NoError(t, Release())
}
