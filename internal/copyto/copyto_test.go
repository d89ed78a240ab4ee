package copyto

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

// recorder is a Memory and Kernels that records calls instead of moving
// data.
type recorder struct {
	calls  []string
	nbytes int
	err    error
}

func (r *recorder) CopyFrom(_ context.Context, _, _ ndarray.Pointer, nbytes int) error {
	r.calls = append(r.calls, "memcpy")
	r.nbytes = nbytes
	return r.err
}

func (r *recorder) CopyPeerFrom(_ context.Context, _, _ ndarray.Pointer, nbytes int) error {
	r.calls = append(r.calls, "peer")
	r.nbytes = nbytes
	return r.err
}

func (r *recorder) Copy(context.Context, *ndarray.Array, *ndarray.Array) error {
	r.calls = append(r.calls, "kernel")
	return r.err
}

func (r *recorder) CopyWhere(context.Context, *ndarray.Array, *ndarray.Array, *ndarray.Array) error {
	r.calls = append(r.calls, "masked-kernel")
	return r.err
}

func desc(t *testing.T, dev device.Device, shape ndarray.Shape, dt dtype.DType, order ndarray.Order) *ndarray.Array {
	t.Helper()
	a, err := ndarray.Describe(dev, shape, ndarray.ContiguousStrides(shape, dt.Size(), order), dt)
	require.NoError(t, err)
	return a
}

func strided(t *testing.T, dev device.Device, shape ndarray.Shape, dt dtype.DType) *ndarray.Array {
	t.Helper()
	strides := ndarray.ContiguousStrides(shape, dt.Size(), ndarray.C)
	strides[len(strides)-1] *= 2
	for i := len(strides) - 2; i >= 0; i-- {
		strides[i] *= 2
	}
	a, err := ndarray.Describe(dev, shape, strides, dt)
	require.NoError(t, err)
	require.False(t, a.Flags().Contiguous())
	return a
}

var (
	gpu0 = device.CUDADevice(0)
	gpu1 = device.CUDADevice(1)
)

func TestRoutes(t *testing.T) {
	t.Parallel()

	f32C := func(dev device.Device) *ndarray.Array { return desc(t, dev, ndarray.Shape{3, 4}, dtype.Float32, ndarray.C) }
	f32F := func(dev device.Device) *ndarray.Array { return desc(t, dev, ndarray.Shape{3, 4}, dtype.Float32, ndarray.F) }
	f64C := func(dev device.Device) *ndarray.Array { return desc(t, dev, ndarray.Shape{3, 4}, dtype.Float64, ndarray.C) }
	boolMask := desc(t, gpu0, ndarray.Shape{3, 4}, dtype.Bool, ndarray.C)

	tests := []struct {
		name  string
		dst   *ndarray.Array
		src   *ndarray.Array
		opts  []Option
		want  Route
		calls []string
	}{
		{"same device both C", f32C(gpu0), f32C(gpu0), nil, RouteMemcpy, []string{"memcpy"}},
		{"same device both F", f32F(gpu0), f32F(gpu0), nil, RouteMemcpy, []string{"memcpy"}},
		{"same device C into F", f32F(gpu0), f32C(gpu0), nil, RouteKernel, []string{"kernel"}},
		{"same device dtype differs", f32C(gpu0), f64C(gpu0), nil, RouteKernel, []string{"kernel"}},
		{"same device strided", f32C(gpu0), strided(t, gpu0, ndarray.Shape{3, 4}, dtype.Float32), nil, RouteKernel, []string{"kernel"}},
		{"broadcast source", f32C(gpu0), desc(t, gpu0, ndarray.Shape{4}, dtype.Float32, ndarray.C), nil, RouteKernel, []string{"kernel"}},
		{"cross device both C", f32C(gpu1), f32C(gpu0), nil, RoutePeer, []string{"peer"}},
		{"cross device both F", f32F(gpu1), f32F(gpu0), nil, RoutePeer, []string{"peer"}},
		{"masked", f32C(gpu0), f32C(gpu0), []Option{Where(boolMask)}, RouteMasked, []string{"masked-kernel"}},
		{"nil mask is no mask", f32C(gpu0), f32C(gpu0), []Option{Where(nil)}, RouteMemcpy, []string{"memcpy"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			d := New(rec, rec)

			route, err := d.Plan(tc.dst, tc.src, tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, route)
			assert.Empty(t, rec.calls, "Plan must not touch memory")

			require.NoError(t, d.Copy(context.Background(), tc.dst, tc.src, tc.opts...))
			assert.Equal(t, tc.calls, rec.calls)
			if route.UsesMemory() {
				assert.Equal(t, tc.src.NBytes(), rec.nbytes)
			}
		})
	}
}

func TestCrossDeviceLayoutErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dst  *ndarray.Array
		src  *ndarray.Array
	}{
		{"order mismatch", desc(t, gpu1, ndarray.Shape{3, 3}, dtype.Float32, ndarray.F), desc(t, gpu0, ndarray.Shape{3, 3}, dtype.Float32, ndarray.C)},
		{"strided source", desc(t, gpu1, ndarray.Shape{2, 3}, dtype.Int32, ndarray.C), strided(t, gpu0, ndarray.Shape{2, 3}, dtype.Int32)},
		{"dtype differs", desc(t, gpu0, ndarray.Shape{3}, dtype.Float64, ndarray.C), desc(t, gpu1, ndarray.Shape{3}, dtype.Float32, ndarray.C)},
		{"size differs", desc(t, gpu0, ndarray.Shape{2, 3}, dtype.Float32, ndarray.C), desc(t, gpu1, ndarray.Shape{3}, dtype.Float32, ndarray.C)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			d := New(rec, rec)

			err := d.Copy(context.Background(), tc.dst, tc.src)
			require.ErrorIs(t, err, ErrCrossDeviceLayout)
			assert.EqualError(t, err, "only contiguous arrays can be copied across devices")
			assert.Empty(t, rec.calls, "kernel must never run across devices")

			var le *LayoutError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tc.dst.Device(), le.Dst)
			assert.Equal(t, tc.src.Device(), le.Src)
			assert.False(t, le.Masked)
		})
	}
}

func TestCastCheckedBeforeAnythingElse(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d := New(rec, rec)

	dst := desc(t, gpu0, ndarray.Shape{0}, dtype.Int32, ndarray.C)
	src := desc(t, gpu1, ndarray.Shape{0}, dtype.Float64, ndarray.C)

	_, err := d.Plan(dst, src)
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.EqualError(t, err, "cannot cast float64 to int32 in same_kind casting mode")

	var ce *CastError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, dtype.Float64, ce.From)
	assert.Equal(t, dtype.Int32, ce.To)
	assert.Equal(t, dtype.SameKind, ce.Casting)

	route, err := d.Plan(dst, src, WithCasting(dtype.Unsafe))
	require.NoError(t, err)
	assert.Equal(t, RouteNone, route)
}

func TestEmptyDestinationShortCircuits(t *testing.T) {
	t.Parallel()

	dst := desc(t, gpu0, ndarray.Shape{0, 4}, dtype.Float32, ndarray.C)
	tests := []struct {
		name string
		src  *ndarray.Array
		opts []Option
	}{
		{"other device", strided(t, gpu1, ndarray.Shape{2, 4}, dtype.Float32), nil},
		{"masked across devices", desc(t, gpu1, ndarray.Shape{4}, dtype.Float32, ndarray.C), []Option{Where(desc(t, device.CPU0, ndarray.Shape{4}, dtype.Bool, ndarray.C))}},
		{"non-bool mask", desc(t, gpu0, ndarray.Shape{4}, dtype.Float32, ndarray.C), []Option{Where(desc(t, gpu0, ndarray.Shape{4}, dtype.Int8, ndarray.C))}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			d := New(rec, rec)
			route, err := d.Plan(dst, tc.src, tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, RouteNone, route)
			require.NoError(t, d.Copy(context.Background(), dst, tc.src, tc.opts...))
			assert.Empty(t, rec.calls)
		})
	}
}

func TestMaskValidation(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d := New(rec, rec)

	dst := desc(t, gpu0, ndarray.Shape{4}, dtype.Float32, ndarray.C)
	src := desc(t, gpu0, ndarray.Shape{4}, dtype.Float32, ndarray.C)

	_, err := d.Plan(dst, src, Where(desc(t, gpu0, ndarray.Shape{4}, dtype.Uint8, ndarray.C)))
	require.ErrorIs(t, err, ErrTypeMismatch)
	var me *MaskTypeError
	require.ErrorAs(t, err, &me)
	assert.EqualError(t, err, "where must be a bool array, got uint8")

	_, err = d.Plan(dst, src, Where(desc(t, gpu1, ndarray.Shape{4}, dtype.Bool, ndarray.C)))
	require.ErrorIs(t, err, ErrCrossDeviceLayout)
	var le *LayoutError
	require.ErrorAs(t, err, &le)
	assert.True(t, le.Masked)

	_, err = d.Plan(dst, desc(t, gpu1, ndarray.Shape{4}, dtype.Float32, ndarray.C), Where(desc(t, gpu0, ndarray.Shape{4}, dtype.Bool, ndarray.C)))
	require.ErrorIs(t, err, ErrCrossDeviceLayout)

	assert.Empty(t, rec.calls)
}

func TestCollaboratorErrorsPassThrough(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("device lost")
	rec := &recorder{err: sentinel}
	d := New(rec, rec)

	pairs := [][2]*ndarray.Array{
		{desc(t, gpu0, ndarray.Shape{2}, dtype.Int64, ndarray.C), desc(t, gpu0, ndarray.Shape{2}, dtype.Int64, ndarray.C)},
		{desc(t, gpu0, ndarray.Shape{2}, dtype.Int64, ndarray.C), desc(t, gpu1, ndarray.Shape{2}, dtype.Int64, ndarray.C)},
		{desc(t, gpu0, ndarray.Shape{2}, dtype.Int64, ndarray.C), desc(t, gpu0, ndarray.Shape{2}, dtype.Int32, ndarray.C)},
	}
	for _, p := range pairs {
		err := d.Copy(context.Background(), p[0], p[1])
		assert.Same(t, sentinel, err)
	}
	err := d.Copy(context.Background(), pairs[0][0], pairs[0][1], Where(desc(t, gpu0, ndarray.Shape{2}, dtype.Bool, ndarray.C)))
	assert.Same(t, sentinel, err)
}

func TestWithCaster(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	strict := CasterFunc(func(from, to dtype.DType, _ dtype.Casting) bool { return from == to })
	d := New(rec, rec, WithCaster(strict))

	dst := desc(t, gpu0, ndarray.Shape{2}, dtype.Float64, ndarray.C)
	src := desc(t, gpu0, ndarray.Shape{2}, dtype.Float32, ndarray.C)
	_, err := d.Plan(dst, src, WithCasting(dtype.Unsafe))
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, d.CanCast(dtype.Float32, dtype.Float64, dtype.Unsafe))
}

func TestCanMemcopy(t *testing.T) {
	t.Parallel()

	c := desc(t, gpu0, ndarray.Shape{2, 3}, dtype.Float32, ndarray.C)
	f := desc(t, gpu0, ndarray.Shape{2, 3}, dtype.Float32, ndarray.F)
	vec := desc(t, gpu0, ndarray.Shape{6}, dtype.Float32, ndarray.C)
	vec64 := desc(t, gpu0, ndarray.Shape{6}, dtype.Float64, ndarray.C)
	short := desc(t, gpu0, ndarray.Shape{5}, dtype.Float32, ndarray.C)
	odd := strided(t, gpu0, ndarray.Shape{2, 3}, dtype.Float32)
	remote := desc(t, gpu1, ndarray.Shape{2, 3}, dtype.Float32, ndarray.C)

	tests := []struct {
		name     string
		dst, src *ndarray.Array
		want     bool
	}{
		{"C and C", c, c, true},
		{"F and F", f, f, true},
		{"C and F", c, f, false},
		{"1-d and C", vec, c, true},
		{"1-d and F", vec, f, true},
		{"dtype differs", vec64, vec, false},
		{"size differs", short, vec, false},
		{"strided", c, odd, false},
		{"device is ignored", remote, c, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanMemcopy(tc.dst, tc.src))
			assert.Equal(t, tc.want, CanMemcopy(tc.src, tc.dst), "must be symmetric")
		})
	}
}

func TestRouteString(t *testing.T) {
	t.Parallel()
	names := map[Route]string{
		RouteNone:   "none",
		RouteMemcpy: "memcpy",
		RouteKernel: "kernel",
		RoutePeer:   "peer",
		RouteMasked: "masked-kernel",
	}
	for r, want := range names {
		assert.Equal(t, want, r.String())
		b, err := r.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
	assert.Equal(t, "Route(9)", Route(9).String())
	_, err := Route(9).MarshalText()
	require.Error(t, err)
}
