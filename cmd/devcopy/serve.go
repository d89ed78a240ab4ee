package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devcopy/internal/api"
	"github.com/samcharles93/devcopy/internal/backend"
	"github.com/samcharles93/devcopy/internal/logger"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the copy API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (default " + defaultServerAddress + ")",
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Usage: "read header timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			s := settingsFrom(ctx)

			addr := s.serverAddress
			if cmd.IsSet("addr") {
				addr = cmd.String("addr")
			}
			readTimeout := cmd.Duration("read-timeout")

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := backend.Close(b); err != nil {
					log.Warn("failed to close backend", "backend", b.Name(), "error", err)
				}
			}()
			server := api.NewServer(api.NewCopyStore(), b, s.casting)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "backend", b.Name(), "casting", s.casting.String())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
