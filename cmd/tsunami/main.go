// Command tsunami sends raw TCP SYN probes at a target's ports and reports
// which came back open, closed, or never answered at all.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xqb64/tsunami/internal/cliopts"
	"github.com/xqb64/tsunami/internal/netresolve"
	"github.com/xqb64/tsunami/internal/rawsock"
	"github.com/xqb64/tsunami/internal/scanner"
	"github.com/xqb64/tsunami/internal/tlog"
)

func main() {
	if err := run(); err != nil {
		tlog.Fatal(err)
		os.Exit(1)
	}
}

func run() error {
	opts, err := cliopts.Parse()
	if err != nil {
		return err
	}
	tlog.Verbose = opts.Verbose

	dest, err := netresolve.ToIPv4(opts.Target)
	if err != nil {
		return err
	}
	tlog.Vf("main: resolved target to %s", dest)

	srcIP, err := netresolve.LocalSourceIPv4()
	if err != nil {
		return err
	}
	tlog.Vf("main: using local source address %s", srcIP)

	cfg := scanner.Config{
		Dest:        dest,
		SrcIP:       srcIP,
		Ports:       opts.Ports,
		Ranges:      opts.RangesAsPortset(),
		FlyingTasks: int(opts.FlyingTasks),
		MaxRetries:  opts.MaxRetries,
		BatchSize:   opts.BatchSize,
		SpawnNapMS:  opts.NapAfterSpawn,
		BatchNapMS:  opts.NapAfterBatch,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return scanner.Run(ctx, cfg, rawsock.NewSendSocket, rawsock.NewRecvSocket)
}
