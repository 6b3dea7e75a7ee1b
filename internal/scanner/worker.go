package scanner

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/xqb64/tsunami/internal/portset"
	"github.com/xqb64/tsunami/internal/rawpacket"
	"github.com/xqb64/tsunami/internal/tlog"
)

// sleep is a package-level hook so batch/worker pacing can be sped up in
// tests without changing the production call sites.
var sleep = time.Sleep

// Inspect is one short-lived probe: acquire an admission permit, build and
// send a single SYN, then nap before releasing the permit. It never reads
// a response — all ingress is the receiver's responsibility.
func Inspect(ctx context.Context, dest net.IP, port portset.Port, sem chan struct{}, srcIP net.IP, spawnNapMS float64, newSocket NewSendSocketFunc) error {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	tlog.Vf("worker: acquired the permit for port %d", port)

	sock, err := newSocket()
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	defer sock.Close()

	buf := make([]byte, rawpacket.PacketLen)
	if err := rawpacket.BuildProbe(buf, srcIP, dest, port); err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	if err := sock.SendTo(ctx, buf, dest); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	tlog.Vf("worker: sent the probe for port %d", port)

	sleep(time.Duration(spawnNapMS * float64(time.Millisecond)))

	tlog.Vf("worker: exiting for port %d", port)
	return nil
}
