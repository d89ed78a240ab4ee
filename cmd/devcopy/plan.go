package main

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devcopy/internal/copyto"
	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

type planOutput struct {
	Route   string `json:"route"`
	Memcopy bool   `json:"memcopy_eligible"`
	Casting string `json:"casting"`
	Src     string `json:"src"`
	Dst     string `json:"dst"`
	Where   string `json:"where,omitempty"`
}

func planCmd() *cli.Command {
	flags := append(arrayFlags("dst", "destination"), arrayFlags("src", "source")...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "where-dtype",
			Usage: "mask element type; enables a masked copy",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print the plan as JSON",
		},
	)

	return &cli.Command{
		Name:  "plan",
		Usage: "Show the route a copy would take without moving data",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s := settingsFrom(ctx)
			dst, err := describeFlags(cmd, "dst")
			if err != nil {
				return err
			}
			src, err := describeFlags(cmd, "src")
			if err != nil {
				return err
			}

			opts := []copyto.Option{copyto.WithCasting(s.casting)}
			var mask *ndarray.Array
			if name := cmd.String("where-dtype"); name != "" {
				dt, err := dtype.Parse(name)
				if err != nil {
					return err
				}
				mask, err = ndarray.Describe(dst.Device(), dst.Shape(), nil, dt)
				if err != nil {
					return err
				}
				opts = append(opts, copyto.Where(mask))
			}

			route, err := copyto.New(nil, nil).Plan(dst, src, opts...)
			if err != nil {
				return fmt.Errorf("plan: %w", err)
			}

			out := planOutput{
				Route:   route.String(),
				Memcopy: copyto.CanMemcopy(dst, src),
				Casting: s.casting.String(),
				Src:     src.String(),
				Dst:     dst.String(),
			}
			if mask != nil {
				out.Where = mask.String()
			}

			w := outWriter(cmd)
			if cmd.Bool("json") {
				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, string(b))
				return err
			}
			fmt.Fprintf(w, "route:    %s\n", out.Route)
			fmt.Fprintf(w, "memcopy:  %t\n", out.Memcopy)
			fmt.Fprintf(w, "casting:  %s\n", out.Casting)
			fmt.Fprintf(w, "src:      %s\n", out.Src)
			fmt.Fprintf(w, "dst:      %s\n", out.Dst)
			if out.Where != "" {
				fmt.Fprintf(w, "where:    %s\n", out.Where)
			}
			return nil
		},
	}
}

// describeFlags builds a memoryless array from the --<prefix>-* flags.
func describeFlags(cmd *cli.Command, prefix string) (*ndarray.Array, error) {
	shape, err := ndarray.ParseShape(cmd.String(prefix + "-shape"))
	if err != nil {
		return nil, fmt.Errorf("--%s-shape: %w", prefix, err)
	}
	dt, err := dtype.Parse(cmd.String(prefix + "-dtype"))
	if err != nil {
		return nil, fmt.Errorf("--%s-dtype: %w", prefix, err)
	}
	dev, err := device.Parse(cmd.String(prefix + "-device"))
	if err != nil {
		return nil, fmt.Errorf("--%s-device: %w", prefix, err)
	}

	strides, err := ndarray.LayoutStrides(shape, dt.Size(), cmd.String(prefix+"-order"))
	if err != nil {
		return nil, fmt.Errorf("--%s-order: %w", prefix, err)
	}
	return ndarray.Describe(dev, shape, strides, dt)
}
