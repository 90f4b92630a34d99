// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package multiplex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd   int
	wakefd int
	events [64]unix.EpollEvent

	// Guards the descriptors against wakes racing close.
	mu     sync.RWMutex
	closed bool
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	event := &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, event); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)

		return nil, fmt.Errorf("register waker: %w", err)
	}

	return &epollPoller{epfd: epfd, wakefd: wakefd}, nil
}

func (p *epollPoller) ctl(op int, fd int, events Events) error {
	event := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}

	return unix.EpollCtl(p.epfd, op, fd, event)
}

func (p *epollPoller) add(fd int, events Events) error {
	err := p.ctl(unix.EPOLL_CTL_ADD, fd, events)
	if errors.Is(err, unix.EEXIST) {
		return ErrFDRegistered
	}

	return err
}

func (p *epollPoller) modify(fd int, events Events) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, events)
}

func (p *epollPoller) remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)

	// Closing a descriptor removes it from the epoll set implicitly.
	if errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENOENT) {
		return nil
	}

	return err
}

func (p *epollPoller) wait(buf []Ready, block bool) ([]Ready, error) {
	timeout := 0
	if block {
		timeout = -1
	}

	n, err := unix.EpollWait(p.epfd, p.events[:], timeout)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return buf, nil
		}

		return buf, fmt.Errorf("epoll wait: %w", err)
	}

	for _, event := range p.events[:n] {
		fd := int(event.Fd)
		if fd == p.wakefd {
			p.drainWaker()
			continue
		}

		buf = append(buf, Ready{
			FD:     fd,
			Events: epollToEvents(event.Events),
		})
	}

	return buf, nil
}

func (p *epollPoller) drainWaker() {
	var buf [8]byte

	// Nonblocking. EAGAIN means someone else drained it already.
	_, _ = unix.Read(p.wakefd, buf[:])
}

func (p *epollPoller) wake() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	var buf [8]byte

	binary.NativeEndian.PutUint64(buf[:], 1)

	// EAGAIN means the counter is saturated, so the waker is pending
	// anyway.
	_, _ = unix.Write(p.wakefd, buf[:])
}

func (p *epollPoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	return errors.Join(
		unix.Close(p.wakefd),
		unix.Close(p.epfd),
	)
}

func eventsToEpoll(events Events) uint32 {
	var epollEvents uint32

	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}

	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}

	return epollEvents
}

func epollToEvents(epollEvents uint32) Events {
	var events Events

	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}

	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}

	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}

	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}

	return events
}
