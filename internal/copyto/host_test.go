package copyto_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/devcopy/internal/backend/cpu"
	"github.com/samcharles93/devcopy/internal/copyto"
	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/logger"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

var (
	host0 = device.Host(0)
	host1 = device.Host(1)
)

func newHost() *copyto.Dispatcher {
	b := cpu.New(2)
	return copyto.New(b, b)
}

func snapshot(t *testing.T, a *ndarray.Array) []byte {
	t.Helper()
	return bytes.Clone(a.Storage().Bytes())
}

func TestScenarioOnesIntoZeros(t *testing.T) {
	t.Parallel()
	d := newHost()

	ones := make([]float32, 9)
	for i := range ones {
		ones[i] = 1
	}
	src, err := ndarray.FromSlice(host0, ones, ndarray.Shape{3, 3}, ndarray.C)
	require.NoError(t, err)
	dst, err := ndarray.Zeros(host0, ndarray.Shape{3, 3}, dtype.Float32, ndarray.C)
	require.NoError(t, err)

	route, err := d.Plan(dst, src)
	require.NoError(t, err)
	assert.Equal(t, copyto.RouteMemcpy, route)

	require.NoError(t, d.Copy(context.Background(), dst, src))
	got, err := ndarray.ToSlice[float32](dst)
	require.NoError(t, err)
	assert.Equal(t, ones, got)
}

func TestScenarioFloat64AcrossDevices(t *testing.T) {
	t.Parallel()
	d := newHost()

	src, err := ndarray.FromSlice(host1, []float64{1, 2, 3, 4}, ndarray.Shape{4}, ndarray.C)
	require.NoError(t, err)
	dst, err := ndarray.Zeros(host0, ndarray.Shape{4}, dtype.Float32, ndarray.C)
	require.NoError(t, err)
	before := snapshot(t, dst)

	// float64 to float32 is a same_kind cast, so the dtype mismatch makes
	// the copy ineligible for a peer transfer.
	err = d.Copy(context.Background(), dst, src)
	require.ErrorIs(t, err, copyto.ErrCrossDeviceLayout)
	assert.Equal(t, before, dst.Storage().Bytes())

	err = d.Copy(context.Background(), dst, src, copyto.WithCasting(dtype.Safe))
	require.ErrorIs(t, err, copyto.ErrTypeMismatch)
	assert.EqualError(t, err, "cannot cast float64 to float32 in safe casting mode")
	assert.Equal(t, before, dst.Storage().Bytes())
}

func TestScenarioPeerCopy(t *testing.T) {
	t.Parallel()
	d := newHost()

	data := []float32{0.5, 1.5, 2.5, 3.5, 4.5, 5.5}
	src, err := ndarray.FromSlice(host0, data, ndarray.Shape{2, 3}, ndarray.C)
	require.NoError(t, err)
	dst, err := ndarray.Zeros(host1, ndarray.Shape{2, 3}, dtype.Float32, ndarray.C)
	require.NoError(t, err)

	route, err := d.Plan(dst, src)
	require.NoError(t, err)
	assert.Equal(t, copyto.RoutePeer, route)

	require.NoError(t, d.Copy(context.Background(), dst, src))
	got, err := ndarray.ToSlice[float32](dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestKernelRouteYieldsLogicallyEqualArrays(t *testing.T) {
	t.Parallel()
	d := newHost()

	data := []int32{1, 2, 3, 4, 5, 6}
	src, err := ndarray.FromSlice(host0, data, ndarray.Shape{2, 3}, ndarray.C)
	require.NoError(t, err)

	fdst, err := ndarray.Zeros(host0, ndarray.Shape{2, 3}, dtype.Int32, ndarray.F)
	require.NoError(t, err)
	route, err := d.Plan(fdst, src)
	require.NoError(t, err)
	assert.Equal(t, copyto.RouteKernel, route)
	require.NoError(t, d.Copy(context.Background(), fdst, src))
	got, err := ndarray.ToSlice[int32](fdst)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	wide, err := ndarray.Zeros(host0, ndarray.Shape{2, 3}, dtype.Int64, ndarray.C)
	require.NoError(t, err)
	require.NoError(t, d.Copy(context.Background(), wide, src))
	got64, err := ndarray.ToSlice[int64](wide)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got64)
}

func TestCrossDeviceNonContiguousLeavesDestination(t *testing.T) {
	t.Parallel()
	d := newHost()

	src, err := ndarray.FromSlice(host0, []int16{1, 2, 3, 4, 5, 6}, ndarray.Shape{2, 3}, ndarray.C)
	require.NoError(t, err)
	srcT, err := src.T()
	require.NoError(t, err)
	dst, err := ndarray.FromSlice(host1, []int16{9, 9, 9, 9, 9, 9}, ndarray.Shape{3, 2}, ndarray.C)
	require.NoError(t, err)
	before := snapshot(t, dst)

	err = d.Copy(context.Background(), dst, srcT)
	require.ErrorIs(t, err, copyto.ErrCrossDeviceLayout)
	assert.Equal(t, before, dst.Storage().Bytes())
}

func TestMaskedCopyMatchesReference(t *testing.T) {
	t.Parallel()

	src := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	initial := []float64{-1, -2, -3, -4, -5, -6, -7, -8}
	masks := map[string][]bool{
		"all false": make([]bool, 8),
		"all true":  {true, true, true, true, true, true, true, true},
		"mixed":     {true, false, false, true, true, false, true, false},
	}

	for name, mask := range masks {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d := newHost()

			s, err := ndarray.FromSlice(host0, src, ndarray.Shape{2, 4}, ndarray.C)
			require.NoError(t, err)
			dst, err := ndarray.FromSlice(host0, initial, ndarray.Shape{2, 4}, ndarray.F)
			require.NoError(t, err)
			m, err := ndarray.FromSlice(host0, mask, ndarray.Shape{2, 4}, ndarray.C)
			require.NoError(t, err)

			route, err := d.Plan(dst, s, copyto.Where(m))
			require.NoError(t, err)
			assert.Equal(t, copyto.RouteMasked, route)
			require.NoError(t, d.Copy(context.Background(), dst, s, copyto.Where(m)))

			want := make([]float64, len(initial))
			for i := range want {
				if mask[i] {
					want[i] = src[i]
				} else {
					want[i] = initial[i]
				}
			}
			got, err := ndarray.ToSlice[float64](dst)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestMaskedCopyEligibleLayoutStillUsesKernel(t *testing.T) {
	t.Parallel()
	d := newHost()

	src, err := ndarray.FromSlice(host0, []uint8{1, 2, 3}, ndarray.Shape{3}, ndarray.C)
	require.NoError(t, err)
	dst, err := ndarray.FromSlice(host0, []uint8{7, 7, 7}, ndarray.Shape{3}, ndarray.C)
	require.NoError(t, err)
	m, err := ndarray.FromSlice(host0, []bool{false, true, false}, ndarray.Shape{3}, ndarray.C)
	require.NoError(t, err)

	require.NoError(t, d.Copy(context.Background(), dst, src, copyto.Where(m)))
	got, err := ndarray.ToSlice[uint8](dst)
	require.NoError(t, err)
	assert.Equal(t, []uint8{7, 2, 7}, got)
}

func TestCopyLogsRoute(t *testing.T) {
	t.Parallel()
	d := newHost()

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.JSON(&buf, slog.LevelDebug))

	src, err := ndarray.FromSlice(host0, []float32{1, 2}, ndarray.Shape{2}, ndarray.C)
	require.NoError(t, err)
	dst, err := ndarray.Zeros(host1, ndarray.Shape{2}, dtype.Float32, ndarray.C)
	require.NoError(t, err)

	require.NoError(t, d.Copy(ctx, dst, src))
	assert.True(t, strings.Contains(buf.String(), `"route":"peer"`), buf.String())
}
