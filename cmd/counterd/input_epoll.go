//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// startInputReaders multiplexes every device onto one goroutine with epoll.
// Closing done wakes the poller through an eventfd; wait returns once it exited.
func startInputReaders(files []*os.File, events chan<- inputEvent, readErr chan<- error, done <-chan struct{}) (wait func(), err error) {
	if len(files) == 0 {
		return nil, errors.New("no input devices provided")
	}

	wake, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		if err := pollInputDevices(files, events, wake, done); err != nil {
			select {
			case readErr <- err:
			case <-done:
			}
		}
	}()

	// The waker owns the eventfd and closes it after the poller is gone.
	go func() {
		select {
		case <-done:
			signalEventfd(wake)
		case <-exited:
		}
		<-exited
		unix.Close(wake)
	}()

	return func() { <-exited }, nil
}

func signalEventfd(fd int) {
	one := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	_, _ = unix.Write(fd, one)
}

// pollInputDevices reads records from files until wake becomes readable, a
// device fails, or done closes while a record is being delivered.
func pollInputDevices(files []*os.File, events chan<- inputEvent, wake int, done <-chan struct{}) error {
	if len(files) == 0 {
		return errors.New("no input devices provided")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	wakeEv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wake)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wake, &wakeEv); err != nil {
		return fmt.Errorf("register wake fd with epoll: %w", err)
	}

	byFD := make(map[int32]*os.File, len(files))
	for _, f := range files {
		fd := int32(f.Fd())
		byFD[fd] = f
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: fd}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
			return fmt.Errorf("register %s with epoll: %w", f.Name(), err)
		}
	}

	ready := make([]unix.EpollEvent, len(files)+1)
	buf := make([]byte, inputEventSize)

	for {
		n, err := unix.EpollWait(epfd, ready, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for _, r := range ready[:n] {
			if int(r.Fd) == wake {
				return nil
			}
			f := byFD[r.Fd]
			if r.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("input device %s hung up", f.Name())
			}
			// evdev hands out whole records per read.
			if _, err := io.ReadFull(f, buf); err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}
			ev, err := decodeInputEvent(buf)
			if err != nil {
				continue
			}
			if !sendInputEvent(events, ev, done) {
				return nil
			}
		}
	}
}
