package scanner

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xqb64/tsunami/internal/portset"
	"github.com/xqb64/tsunami/internal/scanstate"
	"github.com/xqb64/tsunami/internal/tlog"
)

// channelCapacity is the bounded mailbox between the receiver and the
// driver: back-pressure here naturally throttles retry emission when the
// driver falls behind.
const channelCapacity = 8

// Config bundles the driver's tunables.
type Config struct {
	Dest        net.IP
	SrcIP       net.IP
	Ports       []portset.Port
	Ranges      []portset.Range
	FlyingTasks int
	MaxRetries  int
	BatchSize   int
	SpawnNapMS  float64
	BatchNapMS  float64
}

// Run drives the scan end to end: seeds the receiver, pumps its dispatch
// messages through a batched, admission-limited worker fleet, and awaits
// the receiver's completion.
func Run(ctx context.Context, cfg Config, newSend NewSendSocketFunc, newRecv NewRecvSocketFunc) error {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.FlyingTasks <= 0 {
		cfg.FlyingTasks = 1
	}

	seed := portset.Seed(cfg.Ports, cfg.Ranges)

	outbound := make(chan scanstate.Message, channelCapacity)
	sem := make(chan struct{}, cfg.FlyingTasks)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return Receive(gctx, seed, outbound, cfg.MaxRetries, newRecv, silentWindow)
	})

	group.Go(func() error {
		for {
			select {
			case msg, ok := <-outbound:
				if !ok || msg.Break {
					return nil
				}
				if err := dispatchBatches(gctx, msg.Payload, cfg, sem, newSend); err != nil {
					return err
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	return group.Wait()
}

// dispatchBatches slices payload into contiguous chunks of up to
// cfg.BatchSize ports, spawning one worker per port per chunk and awaiting
// the whole chunk before sleeping cfg.BatchNapMS and moving to the next.
func dispatchBatches(ctx context.Context, payload []portset.Port, cfg Config, sem chan struct{}, newSend NewSendSocketFunc) error {
	for start := 0; start < len(payload); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[start:end]

		batch, bctx := errgroup.WithContext(ctx)
		for _, port := range chunk {
			port := port
			batch.Go(func() error {
				return Inspect(bctx, cfg.Dest, port, sem, cfg.SrcIP, cfg.SpawnNapMS, newSend)
			})
		}
		if err := batch.Wait(); err != nil {
			return fmt.Errorf("driver: %w", err)
		}

		tlog.Vf("driver: batch of %d ports done, napping %gms", len(chunk), cfg.BatchNapMS)
		sleep(time.Duration(cfg.BatchNapMS * float64(time.Millisecond)))
	}
	return nil
}
