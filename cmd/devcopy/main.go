package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devcopy/internal/backend"
	"github.com/samcharles93/devcopy/internal/logger"
)

type settingsKey struct{}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "devcopy",
		Usage: "Device-aware array copies",
		Flags: append(globalFlags(), loggingFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			s, err := resolveSettings(cmd, cfg)
			if err != nil {
				return ctx, err
			}
			log, err := logger.Build(s.logFormat, logger.ParseLevel(s.logLevel), errWriter(cmd))
			if err != nil {
				return ctx, err
			}
			ctx = logger.WithContext(ctx, log)
			return context.WithValue(ctx, settingsKey{}, s), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			planCmd(),
			copyCmd(),
			inspectCmd(),
			devicesCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}

func settingsFrom(ctx context.Context) settings {
	if s, ok := ctx.Value(settingsKey{}).(settings); ok {
		return s
	}
	return settings{backend: backend.Auto, serverAddress: defaultServerAddress}
}

func openBackend(ctx context.Context) (backend.Backend, error) {
	s := settingsFrom(ctx)
	b, err := backend.New(s.backend, backend.Config{HostDevices: s.hostDevices})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("backend ready", "backend", b.Name(), "devices", len(b.Devices()))
	return b, nil
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
