package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/HerbHall/wolgate/internal/wol"
)

func runWake(args []string, stdout, stderr io.Writer, sender wol.Sender) int {
	fs := flag.NewFlagSet("wake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	broadcast := fs.String("broadcast", wol.DefaultBroadcastAddr, "destination address (host:port)")
	iface := fs.String("interface", "", "network interface to send from")
	timeout := fs.Duration("timeout", 5*time.Second, "send timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: wolgate wake [flags] MAC [MAC...]")
		return 2
	}

	if sender == nil {
		sender = wol.NewUDPSender(*broadcast, *iface)
	}

	code := 0
	for _, arg := range fs.Args() {
		mac, err := wol.ParseMAC(arg)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", arg, err)
			code = 1
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		err = sender.Send(ctx, mac)
		cancel()
		if err != nil {
			fmt.Fprintf(stderr, "wake %s: %v\n", mac, err)
			code = 1
			continue
		}
		fmt.Fprintf(stdout, "magic packet sent to %s\n", mac)
	}
	return code
}
