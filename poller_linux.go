package bgpio

import (
	"golang.org/x/sys/unix"
)

// epollPoller is the level-triggered epoll readiness facility, with an
// eventfd for waking a blocked wait.
type epollPoller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd,
		&unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)})
	if err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	return &epollPoller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, 128),
	}, nil
}

func interestBits(read, write bool) uint32 {
	var ev uint32
	if read {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if write {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) add(fd int, read, write bool) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd,
		&unix.EpollEvent{Events: interestBits(read, write), Fd: int32(fd)})
}

func (p *epollPoller) modify(fd int, read, write bool) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd,
		&unix.EpollEvent{Events: interestBits(read, write), Fd: int32(fd)})
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
}

func (p *epollPoller) wake() error {
	var one [8]byte
	one[0] = 1
	for {
		_, err := unix.Write(p.wakefd, one[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return nil // counter saturated; a wake is already pending
		}
		return err
	}
}

func (p *epollPoller) wait(fn func(fd int, ev pollEvent)) error {
	n, err := unix.EpollWait(p.epfd, p.events, -1)
	if err == unix.EINTR {
		return nil
	}
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		if fd == p.wakefd {
			var buf [8]byte
			unix.Read(p.wakefd, buf[:]) // nolint: errcheck
			continue
		}
		bits := p.events[i].Events
		var ev pollEvent
		if bits&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLPRI) != 0 {
			ev |= pollReadable
		}
		if bits&unix.EPOLLOUT != 0 {
			ev |= pollWritable
		}
		if bits&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ev |= pollClosed
		}
		fn(fd, ev)
	}
	return nil
}

func (p *epollPoller) close() error {
	err := unix.Close(p.epfd)
	if cerr := unix.Close(p.wakefd); err == nil {
		err = cerr
	}
	return err
}
