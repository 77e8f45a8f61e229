package bgpio

import (
	"errors"
	"net/netip"
)

// errWouldBlock reports that a non-blocking read or write found the socket
// unable to make progress. It is normal control flow, not a failure; the
// caller persists its continuation state and waits for the next readiness
// signal.
var errWouldBlock = errors.New("operation would block")

// Socket is the non-blocking transport endpoint a Connection drives. The
// production implementation wraps a raw connected TCP file descriptor; tests
// substitute a scripted fake.
//
// Read returns io.EOF when the peer has closed cleanly, errWouldBlock when
// no bytes are available, and the raw system error otherwise. Interrupted
// calls are retried internally. Write follows the same contract and may
// accept fewer bytes than offered.
type Socket interface {
	// Fd returns the descriptor registered with the readiness facility.
	Fd() int

	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	// ShutdownRead shuts down only the read half, for flushing a final
	// message after input has been abandoned.
	ShutdownRead() error

	// Shutdown shuts the socket down in both directions.
	Shutdown() error

	Close() error

	LocalAddr() netip.AddrPort
	RemoteAddr() netip.AddrPort
}
