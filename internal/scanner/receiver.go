package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/xqb64/tsunami/internal/portset"
	"github.com/xqb64/tsunami/internal/rawpacket"
	"github.com/xqb64/tsunami/internal/rawsock"
	"github.com/xqb64/tsunami/internal/scanstate"
	"github.com/xqb64/tsunami/internal/tlog"
)

// silentWindow is the sole deadline in the system: 300ms of receive
// silence is the retry/termination trigger, never an error.
const silentWindow = 300 * time.Millisecond

// recvBufferSize comfortably holds a 40-byte IPv4+TCP datagram with room
// to spare; oversized reads are simply truncated by the kernel.
const recvBufferSize = 576

// Receive is the retry/termination engine. It owns the StatusTable and the
// single receive socket, emits Payload/Break messages on outbound, and
// reports the final per-status counters to standard output once its loop
// exits. window is the silent-window deadline (300ms in production;
// exposed so tests can run the same state machine fast).
func Receive(ctx context.Context, seed map[portset.Port]struct{}, outbound chan<- scanstate.Message, maxRetries int, newSocket NewRecvSocketFunc, window time.Duration) error {
	// Closing outbound on every return path (including the early ones
	// below, e.g. a raw socket we don't have privilege to open) is what
	// lets the driver's consumer goroutine notice we're gone instead of
	// blocking on the channel forever.
	defer close(outbound)

	sock, err := newSocket()
	if err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	defer sock.Close()

	table := scanstate.NewTable(seed)

	initial := make([]portset.Port, 0, table.Len())
	for p := range seed {
		initial = append(initial, p)
	}

	if err := sendMessage(ctx, outbound, scanstate.Message{Payload: initial}); err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	tlog.V("receiver: triggered the machinery")

	// Every port we just dispatched has now been probed once.
	table.IncrementRetriedAll()

	buf := make([]byte, recvBufferSize)

	for {
		n, _, err := sock.RecvFrom(ctx, buf, window)
		if err != nil {
			if rawsock.IsTimeout(err) {
				tlog.V("receiver: timed out after 300ms")

				pending := table.Pending(maxRetries)
				if len(pending) == 0 {
					tlog.V("receiver: all done, sending Break")
					if err := sendMessage(ctx, outbound, scanstate.Message{Break: true}); err != nil {
						return fmt.Errorf("receiver: %w", err)
					}
					return finalize(table, maxRetries)
				}

				table.IncrementRetried(pending, maxRetries)
				tlog.Vf("receiver: dispatching another batch of size %d", len(pending))
				if err := sendMessage(ctx, outbound, scanstate.Message{Payload: pending}); err != nil {
					return fmt.Errorf("receiver: %w", err)
				}
				continue
			}
			return fmt.Errorf("receiver: %w", err)
		}

		port, flags, err := rawpacket.ParseTCPFromIP(buf[:n])
		if err != nil {
			// A malformed frame is discarded rather than aborting the scan,
			// but it's anomalous enough to warn about regardless of -v.
			tlog.Errorf("receiver: discarding malformed frame: %v", err)
			continue
		}

		switch flags {
		case rawpacket.SYNACK:
			if table.MarkOpenIfUndecided(port) {
				fmt.Printf("%d: open\n", port)
			}
		case rawpacket.RSTACK:
			table.MarkClosedIfUndecided(port)
		default:
			tlog.Vf("receiver: port %d wasn't expected (flags %#x)", port, flags)
		}
	}
}

// finalize marks the remaining NotInspected-but-exhausted ports Filtered
// and prints the three end-of-scan counters.
func finalize(table *scanstate.Table, maxRetries int) error {
	table.FinalizeFiltered(maxRetries)
	counts := table.Count()

	fmt.Printf("ports closed: %d\n", counts.Closed)
	fmt.Printf("ports filtered: %d\n", counts.Filtered)
	fmt.Printf("ports retried more than once: %d\n", counts.RetriedMoreThanOnce)

	tlog.V("receiver: exiting")
	return nil
}

func sendMessage(ctx context.Context, outbound chan<- scanstate.Message, msg scanstate.Message) error {
	select {
	case outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
