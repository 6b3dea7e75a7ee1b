package scanner

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xqb64/tsunami/internal/portset"
	"github.com/xqb64/tsunami/internal/rawpacket"
	"github.com/xqb64/tsunami/internal/rawsock"
)

// harness is a scripted responder that intercepts the raw socket: a fake
// send socket decodes the destination port out of each probe and, per
// script, enqueues a canned reply for the paired fake receive socket to
// hand back.
type harness struct {
	mu        sync.Mutex
	responses map[portset.Port]string // "open", "closed", "open-twice", or "" (drop)
	incoming  chan []byte

	inFlight    int32
	maxInFlight int32
}

func newHarness(responses map[portset.Port]string) *harness {
	return &harness{
		responses: responses,
		incoming:  make(chan []byte, 64),
	}
}

func (h *harness) newSend() NewSendSocketFunc {
	return func() (rawsock.SendSocket, error) {
		return &fakeSendSocket{h: h}, nil
	}
}

func (h *harness) newRecv() NewRecvSocketFunc {
	return func() (rawsock.RecvSocket, error) {
		return &fakeRecvSocket{h: h}, nil
	}
}

// peakInFlight reports the largest number of probes this harness ever saw
// in SendTo concurrently, for asserting the admission semaphore holds.
func (h *harness) peakInFlight() int32 {
	return atomic.LoadInt32(&h.maxInFlight)
}

type fakeSendSocket struct {
	h *harness
}

var errShortProbe = errors.New("fake send socket: probe too short to decode")

func (s *fakeSendSocket) SendTo(ctx context.Context, b []byte, dest net.IP) error {
	cur := atomic.AddInt32(&s.h.inFlight, 1)
	defer atomic.AddInt32(&s.h.inFlight, -1)
	for {
		old := atomic.LoadInt32(&s.h.maxInFlight)
		if cur <= old || atomic.CompareAndSwapInt32(&s.h.maxInFlight, old, cur) {
			break
		}
	}

	destPort, err := decodeProbeDestPort(b)
	if err != nil {
		return err
	}

	s.h.mu.Lock()
	verdict := s.h.responses[destPort]
	s.h.mu.Unlock()

	switch verdict {
	case "open":
		s.h.incoming <- buildResponse(destPort, rawpacket.SYNACK)
	case "closed":
		s.h.incoming <- buildResponse(destPort, rawpacket.RSTACK)
	case "open-twice":
		s.h.incoming <- buildResponse(destPort, rawpacket.SYNACK)
		s.h.incoming <- buildResponse(destPort, rawpacket.SYNACK)
	}
	return nil
}

func (s *fakeSendSocket) Close() error { return nil }

type fakeRecvSocket struct {
	h *harness
}

func (s *fakeRecvSocket) RecvFrom(ctx context.Context, buf []byte, deadline time.Duration) (int, net.IP, error) {
	select {
	case b := <-s.h.incoming:
		n := copy(buf, b)
		return n, net.ParseIP("127.0.0.1"), nil
	case <-time.After(deadline):
		return 0, nil, rawsock.ErrTimeout
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (s *fakeRecvSocket) Close() error { return nil }

// decodeProbeDestPort pulls the destination port back out of a probe built
// by rawpacket.BuildProbe, at the fixed TCP-header offset it writes to.
func decodeProbeDestPort(buf []byte) (portset.Port, error) {
	if len(buf) < rawpacket.PacketLen {
		return 0, errShortProbe
	}
	tcp := buf[rawpacket.IPHeaderLen:]
	return portset.Port(tcp[2])<<8 | portset.Port(tcp[3]), nil
}

// buildResponse constructs a minimal IPv4+TCP datagram as if the target
// had replied: TCP source port equal to the probe's destination port
// (what the receiver keys its classification on), with the given flags.
func buildResponse(srcPort portset.Port, flags uint8) []byte {
	buf := make([]byte, rawpacket.PacketLen)
	_ = rawpacket.BuildIPv4(buf, net.ParseIP("127.0.0.1"))

	tcp := buf[rawpacket.IPHeaderLen:]
	tcp[0] = byte(srcPort >> 8)
	tcp[1] = byte(srcPort)
	tcp[2] = 0x13
	tcp[3] = 0x37
	tcp[12] = 0x50 // data offset 5, no options
	tcp[13] = flags
	tcp[14] = 0x71
	tcp[15] = 0x10
	return buf
}
