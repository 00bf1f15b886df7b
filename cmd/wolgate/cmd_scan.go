package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/wolgate/internal/recon"
)

func runScan(args []string, stdout, stderr io.Writer, scanner recon.Scanner) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print neighbors as JSON")
	timeout := fs.Duration("timeout", 10*time.Second, "scan timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if scanner == nil {
		scanner = recon.NewARPScanner(zap.NewNop(), net.DefaultResolver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	neighbors, err := scanner.Scan(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "scan failed: %v\n", err)
		return 1
	}

	if *asJSON {
		if neighbors == nil {
			neighbors = []recon.Neighbor{}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(neighbors); err != nil {
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MAC\tIP\tNAME")
	for _, n := range neighbors {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", n.MAC, n.IP, n.Name)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}
