package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devcopy/internal/backend"
)

func devicesCmd() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List the devices of the selected backend",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close(b) }()
			w := outWriter(cmd)
			fmt.Fprintf(w, "backend:   %s\n", b.Name())
			fmt.Fprintf(w, "available: %s\n", backend.Available())
			for _, d := range b.Devices() {
				fmt.Fprintln(w, d)
			}
			return nil
		},
	}
}
