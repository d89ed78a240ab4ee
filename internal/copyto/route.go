package copyto

import "fmt"

// Route is the copy strategy selected for a call.
type Route uint8

const (
	// RouteNone copies nothing: the destination is empty.
	RouteNone Route = iota
	// RouteMemcpy is a raw buffer copy within one device.
	RouteMemcpy
	// RouteKernel is an elementwise copy within one device.
	RouteKernel
	// RoutePeer is a raw buffer copy between two devices.
	RoutePeer
	// RouteMasked is an elementwise copy restricted by a bool mask.
	RouteMasked
)

var routeNames = [...]string{
	RouteNone:   "none",
	RouteMemcpy: "memcpy",
	RouteKernel: "kernel",
	RoutePeer:   "peer",
	RouteMasked: "masked-kernel",
}

func (r Route) String() string {
	if int(r) < len(routeNames) {
		return routeNames[r]
	}
	return fmt.Sprintf("Route(%d)", uint8(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Route) MarshalText() ([]byte, error) {
	if int(r) >= len(routeNames) {
		return nil, fmt.Errorf("invalid route %d", uint8(r))
	}
	return []byte(routeNames[r]), nil
}

// UsesMemory reports whether the route is served by raw buffer copies.
func (r Route) UsesMemory() bool { return r == RouteMemcpy || r == RoutePeer }
