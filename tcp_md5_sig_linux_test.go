package bgpio

import (
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestSetTCPMD5Signature(t *testing.T) {
	// setup AF_INET wildcard socket
	lis, err := net.Listen("tcp4", ":0")
	if err != nil {
		t.Fatalf("error listening: %v", err)
	}
	defer lis.Close()
	_, port, err := net.SplitHostPort(lis.Addr().String())
	if err != nil {
		t.Fatalf("error splitting host/port: %v", err)
	}
	tlis, ok := lis.(*net.TCPListener)
	if !ok {
		t.Fatal("not tcp listener")
	}
	raw, err := tlis.SyscallConn()
	if err != nil {
		t.Fatalf("error getting raw conn: %v", err)
	}

	// set key w/nil addr, this should fail
	var seterr error
	err = raw.Control(func(fdPtr uintptr) {
		fd := int(fdPtr)
		seterr = SetTCPMD5Signature(fd, nil, 32, "password")
	})
	if err != nil {
		t.Fatalf("control err: %v", err)
	}
	if seterr == nil {
		t.Fatal("nil address should fail")
	}

	// set ipv6 addr on AF_INET socket, this should fail
	err = raw.Control(func(fdPtr uintptr) {
		fd := int(fdPtr)
		seterr = SetTCPMD5Signature(fd, net.ParseIP("2001:db8::1"), 128,
			"password")
	})
	if err != nil {
		t.Fatalf("control err: %v", err)
	}
	if seterr == nil {
		t.Fatal("ipv6 address on ipv4 socket should fail")
	}

	// set valid ipv4 addr/key
	err = raw.Control(func(fdPtr uintptr) {
		fd := int(fdPtr)
		seterr = SetTCPMD5Signature(fd, net.ParseIP("127.0.0.1"), 32,
			"password")
	})
	if err != nil {
		t.Fatalf("control err: %v", err)
	}
	if seterr != nil {
		t.Fatalf("unexpected error: %v", seterr)
	}

	// dial w/password from previously set addr, this should succeed
	laddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort("127.0.0.1", "0"))
	if err != nil {
		t.Fatalf("error resolving laddr: %v", err)
	}
	dialer := &net.Dialer{
		Timeout:   time.Second,
		LocalAddr: laddr,
		Control: func(network, address string, c syscall.RawConn) error {
			err := c.Control(func(fdPtr uintptr) {
				fd := int(fdPtr)
				seterr = SetTCPMD5Signature(fd, net.ParseIP("127.0.0.1"), 32,
					"password")
			})
			if err != nil {
				return err
			}
			return seterr
		},
	}
	conn, err := dialer.Dial("tcp", fmt.Sprintf("127.0.0.1:%s", port))
	if err != nil {
		t.Fatalf("error dialing w/md5: %v", err)
	}
	defer conn.Close()

	// unset previously set password
	err = raw.Control(func(fdPtr uintptr) {
		fd := int(fdPtr)
		seterr = SetTCPMD5Signature(fd, net.ParseIP("127.0.0.1"), 32, "")
	})
	if err != nil {
		t.Fatalf("control err: %v", err)
	}
	if seterr != nil {
		t.Fatalf("error unsetting: %v", seterr)
	}

	// dial w/o password, this should succeed
	conn2, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%s", port))
	if err != nil {
		t.Fatalf("error dialing w/o md5: %v", err)
	}
	defer conn2.Close()
}
