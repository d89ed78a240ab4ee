package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devcopy/internal/safetensors"
)

type inspectTensor struct {
	Name    string   `json:"name"`
	DType   string   `json:"dtype"`
	Shape   []int    `json:"shape"`
	Bytes   int64    `json:"bytes"`
	Offsets [2]int64 `json:"data_offsets"`
}

type inspectOutput struct {
	File     string            `json:"file"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Tensors  []inspectTensor   `json:"tensors"`
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "List the tensors in a .safetensors file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("inspect: expected exactly one FILE argument")
			}
			path := cmd.Args().First()
			f, err := safetensors.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			out := inspectOutput{
				File:     filepath.Base(path),
				Metadata: f.Metadata,
			}
			for _, name := range f.Names() {
				t, _ := f.Tensor(name)
				out.Tensors = append(out.Tensors, inspectTensor{
					Name:    t.Name,
					DType:   t.DTypeName,
					Shape:   []int(t.Shape),
					Bytes:   t.NBytes(),
					Offsets: [2]int64{t.Start, t.End},
				})
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

			fmt.Fprintf(w, "file:    %s\n", out.File)
			fmt.Fprintf(w, "tensors: %d\n", len(out.Tensors))
			if len(out.Metadata) > 0 {
				fmt.Fprintln(w, "metadata:")
				keys := make([]string, 0, len(out.Metadata))
				for k := range out.Metadata {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "  %s: %s\n", k, out.Metadata[k])
				}
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDTYPE\tSHAPE\tBYTES\tOFFSETS")
			for _, t := range out.Tensors {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t[%d, %d)\n", t.Name, t.DType, t.Shape, t.Bytes, t.Offsets[0], t.Offsets[1])
			}
			return tw.Flush()
		},
	}
}
