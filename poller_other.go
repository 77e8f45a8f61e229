//go:build !linux

package bgpio

import "errors"

var errUnsupported = errors.New("bgpio is only supported on linux")

func newPoller() (poller, error) {
	return nil, errUnsupported
}

// NewSocket wraps a connected socket descriptor. Only supported on linux.
func NewSocket(fd int) (Socket, error) {
	return nil, errUnsupported
}
