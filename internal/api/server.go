// Package api serves the copy dispatcher over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/devcopy/internal/backend"
	"github.com/samcharles93/devcopy/internal/copyto"
	"github.com/samcharles93/devcopy/internal/logger"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

type Server struct {
	store      *CopyStore
	backend    backend.Backend
	dispatcher *copyto.Dispatcher
	casting    dtype.Casting
	now        func() time.Time
}

// NewServer serves copies executed on b. casting applies to requests that
// do not name a casting rule.
func NewServer(store *CopyStore, b backend.Backend, casting dtype.Casting) *Server {
	return &Server{
		store:      store,
		backend:    b,
		dispatcher: copyto.New(b, b),
		casting:    casting,
		now:        time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/devices", s.handleDevices)
	e.POST("/v1/plan", s.handlePlan)
	e.POST("/v1/copy", s.handleCopy)
	e.GET("/v1/copies/:id", s.handleGetCopy)
	e.DELETE("/v1/copies/:id", s.handleDeleteCopy)
}

func (s *Server) handleDevices(c *echo.Context) error {
	devs := s.backend.Devices()
	names := make([]string, 0, len(devs))
	for _, d := range devs {
		names = append(names, d.String())
	}
	return c.JSON(http.StatusOK, DeviceList{
		Object:  "list",
		Backend: s.backend.Name(),
		Data:    names,
	})
}

func (s *Server) resolveCasting(name string) (dtype.Casting, error) {
	if name == "" {
		return s.casting, nil
	}
	casting, err := dtype.ParseCasting(name)
	if err != nil {
		return 0, newInvalidRequest(err.Error())
	}
	return casting, nil
}

func (s *Server) handlePlan(c *echo.Context) error {
	req, err := decodeJSON[PlanRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	casting, err := s.resolveCasting(req.Casting)
	if err != nil {
		return writeCopyError(c, err, "casting")
	}
	dst, err := describe(req.Dst)
	if err != nil {
		return writeCopyError(c, err, "dst")
	}
	src, err := describe(req.Src)
	if err != nil {
		return writeCopyError(c, err, "src")
	}
	opts := []copyto.Option{copyto.WithCasting(casting)}
	if req.Where != nil {
		mask, err := describe(*req.Where)
		if err != nil {
			return writeCopyError(c, err, "where")
		}
		opts = append(opts, copyto.Where(mask))
	}

	route, err := s.dispatcher.Plan(dst, src, opts...)
	if err != nil {
		return writeCopyError(c, err, "")
	}
	return c.JSON(http.StatusOK, PlanResponse{
		ID:        newRequestID(),
		Object:    "copy.plan",
		Route:     route.String(),
		Memcopy:   copyto.CanMemcopy(dst, src),
		Casting:   casting.String(),
		SrcDevice: src.Device().String(),
		DstDevice: dst.Device().String(),
	})
}

func (s *Server) handleCopy(c *echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	req, err := decodeJSON[CopyRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	casting, err := s.resolveCasting(req.Casting)
	if err != nil {
		return writeCopyError(c, err, "casting")
	}

	arena := backend.NewArena(s.backend)
	defer func() {
		if err := arena.Release(); err != nil {
			log.Warn("failed to release copy buffers", "error", err)
		}
	}()
	dst, err := materialize(ctx, arena, s.backend, req.Dst)
	if err != nil {
		return writeCopyError(c, err, "dst")
	}
	src, err := materialize(ctx, arena, s.backend, req.Src)
	if err != nil {
		return writeCopyError(c, err, "src")
	}
	opts := []copyto.Option{copyto.WithCasting(casting)}
	if req.Where != nil {
		mask, err := materialize(ctx, arena, s.backend, *req.Where)
		if err != nil {
			return writeCopyError(c, err, "where")
		}
		opts = append(opts, copyto.Where(mask))
	}

	route, err := s.dispatcher.Plan(dst, src, opts...)
	if err != nil {
		return writeCopyError(c, err, "")
	}
	if err := s.dispatcher.Copy(ctx, dst, src, opts...); err != nil {
		log.Error("copy failed", "route", route.String(), "error", err)
		return writeCopyError(c, err, "")
	}

	order, _ := ndarray.ParseOrder(req.Dst.Order)
	values, err := readBack(ctx, s.backend, dst, order)
	if err != nil {
		return writeCopyError(c, err, "")
	}
	out := req.Dst
	out.Order = order.String()
	out.Device = dst.Device().String()
	out.DType = dst.DType().String()
	out.Values = values

	resp := s.store.Create(route.String(), casting.String(), out, s.now())
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetCopy(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "copy not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteCopy(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "copy not found")
	}
	return c.JSON(http.StatusOK, DeleteCopyResp{
		ID:      id,
		Object:  "copy.deleted",
		Deleted: true,
	})
}

func isInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ndarray.ErrInvalidShape) ||
		errors.Is(err, ndarray.ErrShapeMismatch)
}
