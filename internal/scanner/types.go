// Package scanner implements the dispatch/retry/coordination engine:
// the receiver, the worker, and the driver loop that ties them together.
package scanner

import "github.com/xqb64/tsunami/internal/rawsock"

// NewSendSocketFunc constructs a fresh send-capable raw socket; workers
// call it once per probe. Tests substitute a fake to intercept the wire.
type NewSendSocketFunc func() (rawsock.SendSocket, error)

// NewRecvSocketFunc constructs the receiver's single receive-capable raw
// socket. Tests substitute a fake to intercept the wire.
type NewRecvSocketFunc func() (rawsock.RecvSocket, error)
