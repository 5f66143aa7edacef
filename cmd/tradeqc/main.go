// Command tradeqc runs the trade quality-control pipeline.
//
// Subcommands:
//
//	run       clean a trades CSV, aggregate bars, compute rolling stats, export
//	generate  produce a synthetic trades CSV
//	serve     expose a completed run over HTTP
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(ctx, os.Args[2:])
	case "generate":
		err = generateCmd(os.Args[2:])
	case "serve":
		err = serveCmd(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: tradeqc <command> [flags]

commands:
  run       process a trades CSV into per-instrument bars and reports
  generate  produce a synthetic trades CSV
  serve     serve a completed run's results over HTTP

run 'tradeqc <command> -h' for command flags
`)
}
