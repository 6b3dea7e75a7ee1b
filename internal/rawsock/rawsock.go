// Package rawsock is the thin facade over the platform's raw-socket
// primitive: a send-capable socket with the IP header included, and a
// receive-capable raw TCP socket, each exposing asynchronous-feeling
// send_to/recv_from operations on top of golang.org/x/sys/unix's socket
// syscalls.
package rawsock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// SendSocket is a raw, IP-header-included socket that can transmit
// caller-built datagrams.
type SendSocket interface {
	SendTo(ctx context.Context, b []byte, dest net.IP) error
	Close() error
}

// RecvSocket is a raw TCP socket that can receive datagrams with a
// deadline, returning (0, nil, ErrTimeout) when nothing arrives in time.
type RecvSocket interface {
	RecvFrom(ctx context.Context, buf []byte, deadline time.Duration) (n int, peer net.IP, err error)
	Close() error
}

// ErrTimeout is returned by RecvFrom when the deadline elapses with no
// datagram; it is a control signal, not a scan failure. Callers should
// test for it with errors.Is, and fakes in tests can return it directly.
var ErrTimeout = errors.New("rawsock: receive deadline exceeded")

// IsTimeout reports whether err is the receive-deadline signal.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

type fdSocket struct {
	fd int
}

// NewSendSocket opens a raw socket with IP_HDRINCL set, suitable for
// transmitting fully-formed IPv4 datagrams (our own header included).
func NewSendSocket() (SendSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("rawsock: couldn't create the send socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: couldn't set IP_HDRINCL: %w", err)
	}
	return &fdSocket{fd: fd}, nil
}

// NewRecvSocket opens a raw socket bound to the TCP protocol number,
// suitable for receiving whatever TCP datagrams the kernel routes to this
// raw listener.
func NewRecvSocket() (RecvSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("rawsock: couldn't create the socket: %w", err)
	}
	return &fdSocket{fd: fd}, nil
}

func (s *fdSocket) SendTo(ctx context.Context, b []byte, dest net.IP) error {
	dst4 := dest.To4()
	if dst4 == nil {
		return fmt.Errorf("rawsock: destination %v is not an IPv4 address", dest)
	}

	addr := unix.SockaddrInet4{}
	copy(addr.Addr[:], dst4)

	errc := make(chan error, 1)
	go func() { errc <- unix.Sendto(s.fd, b, 0, &addr) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("rawsock: send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fdSocket) RecvFrom(ctx context.Context, buf []byte, deadline time.Duration) (int, net.IP, error) {
	tv := unix.NsecToTimeval(deadline.Nanoseconds())
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return 0, nil, fmt.Errorf("rawsock: couldn't set receive deadline: %w", err)
	}

	type result struct {
		n    int
		peer unix.Sockaddr
		err  error
	}
	resc := make(chan result, 1)
	go func() {
		n, peer, err := unix.Recvfrom(s.fd, buf, 0)
		resc <- result{n, peer, err}
	}()

	select {
	case res := <-resc:
		if res.err == unix.EAGAIN || res.err == unix.EWOULDBLOCK {
			return 0, nil, ErrTimeout
		}
		if res.err != nil {
			return 0, nil, fmt.Errorf("rawsock: receive failed: %w", res.err)
		}
		var peerIP net.IP
		if sa4, ok := res.peer.(*unix.SockaddrInet4); ok {
			peerIP = net.IP(sa4.Addr[:])
		}
		return res.n, peerIP, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (s *fdSocket) Close() error {
	return unix.Close(s.fd)
}
