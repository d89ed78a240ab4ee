package main

import (
	"github.com/urfave/cli/v3"
)

const defaultServerAddress = "127.0.0.1:8080"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to config file (default ~/.config/devcopy/config.yaml)",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "execution backend (auto, cpu, cuda)",
			Value: "auto",
		},
		&cli.IntFlag{
			Name:  "host-devices",
			Usage: "number of logical devices the cpu backend models",
			Value: 2,
		},
		&cli.StringFlag{
			Name:  "casting",
			Usage: "casting rule (no, equiv, safe, same_kind, unsafe)",
			Value: "same_kind",
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format (pretty, json, text)",
			Value: "pretty",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging (shorthand for --log-level=debug)",
		},
	}
}

// arrayFlags describes one operand of a planned copy.
func arrayFlags(prefix, role string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  prefix + "-shape",
			Usage: role + " shape, e.g. 3,3",
		},
		&cli.StringFlag{
			Name:  prefix + "-dtype",
			Usage: role + " element type",
			Value: "float32",
		},
		&cli.StringFlag{
			Name:  prefix + "-device",
			Usage: role + " device, e.g. cpu:0 or cuda:1",
			Value: "cpu:0",
		},
		&cli.StringFlag{
			Name:  prefix + "-order",
			Usage: role + " layout (C, F, strided)",
			Value: "C",
		},
	}
}
