package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/wolgate/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code. With no
// subcommand, or only flags, it serves.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && !isHelp(args[0])) {
		return runServe(args, stderr)
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:], stderr)
	case "wake":
		return runWake(args[1:], stdout, stderr, nil)
	case "scan":
		return runScan(args[1:], stdout, stderr, nil)
	case "backup":
		return runBackup(args[1:], stdout, stderr)
	case "restore":
		return runRestore(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.Info())
		return 0
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
}

func isHelp(arg string) bool {
	return arg == "-h" || arg == "-help" || arg == "--help"
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: wolgate <command> [flags]

Commands:
  serve      run the gateway (default)
  wake MAC   send a magic packet and exit
  scan       list neighbors from the ARP table
  backup     archive the history database and configuration
  restore    extract a backup archive
  version    print version information

Run "wolgate <command> -h" for command flags.
`)
}

// newLogger builds a production logger at level ("debug", "info", ...).
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
