// Package copyto copies array contents between arrays that may live on
// different devices, differ in layout or dtype, and be restricted by a
// bool mask. It picks the cheapest valid strategy and hands the actual
// data movement to a Memory and a Kernels implementation.
package copyto

import (
	"context"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/logger"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

// Caster decides whether one dtype may be cast to another.
type Caster interface {
	CanCast(from, to dtype.DType, casting dtype.Casting) bool
}

// CasterFunc adapts a function to the Caster interface.
type CasterFunc func(from, to dtype.DType, casting dtype.Casting) bool

func (f CasterFunc) CanCast(from, to dtype.DType, casting dtype.Casting) bool {
	return f(from, to, casting)
}

// Memory moves raw bytes. The source of a peer copy is src.Device().
type Memory interface {
	CopyFrom(ctx context.Context, dst, src ndarray.Pointer, nbytes int) error
	CopyPeerFrom(ctx context.Context, dst, src ndarray.Pointer, nbytes int) error
}

// Kernels performs elementwise copies. Both kernels broadcast src (and
// mask) to the shape of dst and convert elements to dst's dtype.
type Kernels interface {
	Copy(ctx context.Context, src, dst *ndarray.Array) error
	CopyWhere(ctx context.Context, src, mask, dst *ndarray.Array) error
}

// Descriptor is the part of an array that routing looks at.
type Descriptor interface {
	Size() int
	DType() dtype.DType
	Device() device.Device
	Flags() ndarray.Flags
}

// CanMemcopy reports whether src can be copied into dst as one contiguous
// block of bytes: same dtype, same element count and a shared dense order.
func CanMemcopy(dst, src Descriptor) bool {
	df, sf := dst.Flags(), src.Flags()
	sameOrder := (df.CContiguous && sf.CContiguous) || (df.FContiguous && sf.FContiguous)
	return sameOrder && dst.DType() == src.DType() && dst.Size() == src.Size()
}

// Dispatcher routes copies to a Memory or Kernels implementation. It holds
// no mutable state and is safe for concurrent use on distinct
// destinations.
type Dispatcher struct {
	mem     Memory
	kernels Kernels
	caster  Caster
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCaster replaces the casting predicate. The default is dtype.CanCast.
func WithCaster(c Caster) DispatcherOption {
	return func(d *Dispatcher) {
		d.caster = c
	}
}

// New creates a Dispatcher. A backend usually serves as both mem and
// kernels.
func New(mem Memory, kernels Kernels, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		mem:     mem,
		kernels: kernels,
		caster:  CasterFunc(dtype.CanCast),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type callOptions struct {
	casting dtype.Casting
	where   *ndarray.Array
}

// Option adjusts a single Plan or Copy call.
type Option func(*callOptions)

// WithCasting sets the casting policy. The default is same_kind.
func WithCasting(c dtype.Casting) Option {
	return func(o *callOptions) {
		o.casting = c
	}
}

// Where restricts the copy to elements where mask is true. A nil mask
// means no mask.
func Where(mask *ndarray.Array) Option {
	return func(o *callOptions) {
		o.where = mask
	}
}

func collect(opts []Option) callOptions {
	o := callOptions{casting: dtype.DefaultCasting}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Plan validates a copy from src into dst and returns the route Copy
// would take. It touches no memory.
func (d *Dispatcher) Plan(dst, src Descriptor, opts ...Option) (Route, error) {
	o := collect(opts)
	var mask Descriptor
	if o.where != nil {
		mask = o.where
	}
	return d.plan(dst, src, mask, o.casting)
}

func (d *Dispatcher) plan(dst, src, mask Descriptor, casting dtype.Casting) (Route, error) {
	if !d.caster.CanCast(src.DType(), dst.DType(), casting) {
		return RouteNone, &CastError{From: src.DType(), To: dst.DType(), Casting: casting}
	}
	if dst.Size() == 0 {
		return RouteNone, nil
	}

	if mask != nil {
		if mask.DType() != dtype.Bool {
			return RouteNone, &MaskTypeError{DType: mask.DType()}
		}
		if src.Device() != dst.Device() || mask.Device() != dst.Device() {
			return RouteNone, &LayoutError{Dst: dst.Device(), Src: src.Device(), Masked: true}
		}
		return RouteMasked, nil
	}

	eligible := CanMemcopy(dst, src)
	if src.Device() == dst.Device() {
		if eligible {
			return RouteMemcpy, nil
		}
		return RouteKernel, nil
	}
	if eligible {
		return RoutePeer, nil
	}
	return RouteNone, &LayoutError{Dst: dst.Device(), Src: src.Device()}
}

// Copy copies src into dst along the route Plan selects. Errors from the
// Memory and Kernels implementations are returned unchanged. When Copy
// fails before reaching them, dst is not modified.
func (d *Dispatcher) Copy(ctx context.Context, dst, src *ndarray.Array, opts ...Option) error {
	o := collect(opts)
	var mask Descriptor
	if o.where != nil {
		mask = o.where
	}
	route, err := d.plan(dst, src, mask, o.casting)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Debug("copyto",
		"route", route.String(),
		"src", src.Device().String(),
		"dst", dst.Device().String(),
		"dtype", src.DType().String()+"->"+dst.DType().String(),
		"elements", dst.Size(),
	)

	switch route {
	case RouteMemcpy:
		return d.mem.CopyFrom(ctx, dst.Data(), src.Data(), src.NBytes())
	case RoutePeer:
		return d.mem.CopyPeerFrom(ctx, dst.Data(), src.Data(), src.NBytes())
	case RouteKernel:
		return d.kernels.Copy(ctx, src, dst)
	case RouteMasked:
		return d.kernels.CopyWhere(ctx, src, o.where, dst)
	}
	return nil
}

// CanCast applies the dispatcher's casting predicate.
func (d *Dispatcher) CanCast(from, to dtype.DType, casting dtype.Casting) bool {
	return d.caster.CanCast(from, to, casting)
}
