package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devcopy/internal/backend"
	"github.com/samcharles93/devcopy/internal/copyto"
	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/logger"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/internal/safetensors"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

func copyCmd() *cli.Command {
	return &cli.Command{
		Name:  "copy",
		Usage: "Copy a tensor between devices and layouts through the dispatcher",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "input .safetensors file", Required: true},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output .safetensors file", Required: true},
			&cli.StringFlag{Name: "src", Usage: "source tensor name", Required: true},
			&cli.StringFlag{Name: "dst", Usage: "tensor holding the initial destination values (default zeros)"},
			&cli.StringFlag{Name: "where", Usage: "boolean mask tensor; only selected elements are written"},
			&cli.StringFlag{Name: "name", Usage: "tensor name in the output file (default the source name)"},
			&cli.StringFlag{Name: "src-device", Usage: "device the source is placed on (default the backend's first device)"},
			&cli.StringFlag{Name: "dst-device", Usage: "device the destination is placed on (default the backend's first device)"},
			&cli.StringFlag{Name: "dst-dtype", Usage: "destination element type (default the source type)"},
			&cli.StringFlag{Name: "dst-order", Usage: "destination layout (C, F)", Value: "C"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			s := settingsFrom(ctx)

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := backend.Close(b); err != nil {
					log.Warn("failed to close backend", "backend", b.Name(), "error", err)
				}
			}()
			srcDev, err := deviceFlag(b, cmd, "src-device")
			if err != nil {
				return err
			}
			dstDev, err := deviceFlag(b, cmd, "dst-device")
			if err != nil {
				return err
			}
			order, err := ndarray.ParseOrder(cmd.String("dst-order"))
			if err != nil {
				return err
			}

			f, err := safetensors.Open(cmd.String("in"))
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			arena := backend.NewArena(b)
			defer func() {
				if err := arena.Release(); err != nil {
					log.Warn("failed to release device buffers", "error", err)
				}
			}()
			d := copyto.New(b, b)
			src, err := place(ctx, arena, d, f, cmd.String("src"), srcDev, ndarray.C)
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}

			var dst *ndarray.Array
			if name := cmd.String("dst"); name != "" {
				if cmd.IsSet("dst-dtype") {
					return fmt.Errorf("--dst-dtype cannot be combined with --dst")
				}
				dst, err = place(ctx, arena, d, f, name, dstDev, order)
			} else {
				dt := src.DType()
				if name := cmd.String("dst-dtype"); name != "" {
					if dt, err = dtype.Parse(name); err != nil {
						return err
					}
				}
				dst, err = arena.Alloc(dstDev, src.Shape(), dt, order)
			}
			if err != nil {
				return fmt.Errorf("destination: %w", err)
			}

			opts := []copyto.Option{copyto.WithCasting(s.casting)}
			if name := cmd.String("where"); name != "" {
				mask, err := place(ctx, arena, d, f, name, dstDev, ndarray.C)
				if err != nil {
					return fmt.Errorf("mask: %w", err)
				}
				opts = append(opts, copyto.Where(mask))
			}

			route, err := d.Plan(dst, src, opts...)
			if err != nil {
				return err
			}
			if err := d.Copy(ctx, dst, src, opts...); err != nil {
				return err
			}

			host, err := ndarray.Zeros(device.CPU0, dst.Shape(), dst.DType(), order)
			if err != nil {
				return err
			}
			if err := d.Copy(ctx, host, dst); err != nil {
				return fmt.Errorf("read back: %w", err)
			}

			outName := cmd.String("name")
			if outName == "" {
				outName = cmd.String("src")
			}
			meta := map[string]string{
				"devcopy.route":   route.String(),
				"devcopy.casting": s.casting.String(),
			}
			if err := safetensors.Write(cmd.String("out"), []safetensors.Named{{Name: outName, Array: host}}, meta); err != nil {
				return err
			}

			log.Info("copy complete", "route", route.String(), "src", srcDev.String(), "dst", dstDev.String())
			_, err = fmt.Fprintf(outWriter(cmd), "%s -> %s: %s %v %s (%s)\n",
				cmd.String("src"), outName, dst.DType(), dst.Shape(), dstDev, route)
			return err
		},
	}
}

func deviceFlag(b backend.Backend, cmd *cli.Command, name string) (device.Device, error) {
	if cmd.String(name) == "" {
		return b.Devices()[0], nil
	}
	d, err := device.Parse(cmd.String(name))
	if err != nil {
		return device.Device{}, fmt.Errorf("--%s: %w", name, err)
	}
	return backend.Device(b, d)
}

// place loads a tensor and moves it onto dev in the given order. Every move
// goes through the dispatcher, so host to device transfers take the peer
// route and relayouts take the kernel route. Device buffers are tracked by
// arena.
func place(ctx context.Context, arena *backend.Arena, d *copyto.Dispatcher, f *safetensors.File, name string, dev device.Device, order ndarray.Order) (*ndarray.Array, error) {
	host, err := f.Array(name, device.CPU0)
	if err != nil {
		return nil, err
	}
	staged, err := arena.Alloc(dev, host.Shape(), host.DType(), ndarray.C)
	if err != nil {
		return nil, err
	}
	if err := d.Copy(ctx, staged, host); err != nil {
		return nil, err
	}
	if order == ndarray.C {
		return staged, nil
	}
	out, err := arena.Alloc(dev, host.Shape(), host.DType(), order)
	if err != nil {
		return nil, err
	}
	if err := d.Copy(ctx, out, staged); err != nil {
		return nil, err
	}
	return out, nil
}
