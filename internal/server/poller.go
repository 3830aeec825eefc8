package server

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const readyEvents = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL

// poller waits for readability on a set of descriptors with poll(2). A
// self-pipe lets another goroutine interrupt the wait.
type poller struct {
	wakeR int
	wakeW int
	fds   []unix.PollFd
}

func newPoller() (*poller, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("set nonblock: %w", err)
		}
	}
	return &poller{wakeR: p[0], wakeW: p[1]}, nil
}

// wait blocks until at least one of fds is readable, hung up or in error, or
// until wake is called. It returns the indexes of the ready fds and whether
// the poller was woken.
func (p *poller) wait(fds []int) ([]int, bool, error) {
	p.fds = p.fds[:0]
	p.fds = append(p.fds, unix.PollFd{Fd: int32(p.wakeR), Events: unix.POLLIN})
	for _, fd := range fds {
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}

	for {
		_, err := unix.Poll(p.fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("poll: %w", err)
		}
		break
	}

	woken := false
	if p.fds[0].Revents&readyEvents != 0 {
		woken = true
		p.drain()
	}

	var ready []int
	for i, pfd := range p.fds[1:] {
		if pfd.Revents&readyEvents != 0 {
			ready = append(ready, i)
		}
	}
	return ready, woken, nil
}

func (p *poller) wake() error {
	_, err := unix.Write(p.wakeW, []byte{0})
	if err == unix.EAGAIN {
		// the pipe is already full of wakeups
		return nil
	}
	return err
}

func (p *poller) drain() {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(p.wakeR, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *poller) close() {
	unix.Close(p.wakeR)
	unix.Close(p.wakeW)
}
