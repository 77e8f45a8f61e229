package bgpio

import (
	"io"
	"net/netip"

	"golang.org/x/sys/unix"
)

// rawSocket drives a connected TCP descriptor with non-blocking syscalls.
type rawSocket struct {
	fd     int
	local  netip.AddrPort
	remote netip.AddrPort
}

// NewSocket wraps a connected socket descriptor, placing it in non-blocking
// mode and capturing its local and remote addresses. The caller hands over
// ownership of the descriptor.
func NewSocket(fd int) (Socket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	s := &rawSocket{fd: fd}
	if sa, err := unix.Getsockname(fd); err == nil {
		s.local = sockaddrToAddrPort(sa)
	}
	if sa, err := unix.Getpeername(fd); err == nil {
		s.remote = sockaddrToAddrPort(sa)
	}
	return s, nil
}

func sockaddrToAddrPort(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port))
	}
	return netip.AddrPort{}
}

func (s *rawSocket) Fd() int { return s.fd }

func (s *rawSocket) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch err {
		case nil:
			if n == 0 && len(p) > 0 {
				return 0, io.EOF
			}
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, errWouldBlock
		default:
			return 0, err
		}
	}
}

func (s *rawSocket) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, errWouldBlock
		default:
			return 0, err
		}
	}
}

func (s *rawSocket) ShutdownRead() error {
	return unix.Shutdown(s.fd, unix.SHUT_RD)
}

func (s *rawSocket) Shutdown() error {
	return unix.Shutdown(s.fd, unix.SHUT_RDWR)
}

func (s *rawSocket) Close() error {
	return unix.Close(s.fd)
}

func (s *rawSocket) LocalAddr() netip.AddrPort  { return s.local }
func (s *rawSocket) RemoteAddr() netip.AddrPort { return s.remote }
