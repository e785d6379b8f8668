// Command h7 runs the application loader on a development host and
// provides the image tooling.
//
// Usage:
//
//	h7 run    [-config board.yaml]       start the board shell
//	h7 mkapp  [-entry addr] <in> <out>   package a linker output as an image
//	h7 info   [-config board.yaml] <img> print the load report of an image
//	h7 schema                            print the board config JSON schema
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/reglet-dev/h7-kernel/application/config"
	"github.com/reglet-dev/h7-kernel/infrastructure/parser"
)

// Exit statuses.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitFault = 101
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = cmdRun(ctx, args[1:])
	case "mkapp":
		err = cmdMkapp(args[1:], stdout)
	case "info":
		err = cmdInfo(args[1:], stdout)
	case "schema":
		err = cmdSchema(args[1:], stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "h7: unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case err == flag.ErrHelp:
		return exitOK
	default:
		fmt.Fprintf(stderr, "h7: %v\n", err)
		return exitError
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: h7 <command> [arguments]

commands:
  run     start the board shell
  mkapp   package a linker output as an image
  info    print the load report of an image
  schema  print the board config JSON schema
`)
}

// loadBoard reads the board configuration named by path, or the defaults.
func loadBoard(path string) (config.Board, error) {
	return config.LoadFile(path, parser.NewYamlConfigParser(true))
}
