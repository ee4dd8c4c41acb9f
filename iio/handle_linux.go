//go:build linux

package iio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mklimuk/sensorhal"
)

var ErrHandleClosed = errors.New("iio: data handle closed")

// Open opens the data character device non-blocking.
func (d *Device) Open(ctx context.Context) (sensorhal.DataHandle, error) {
	fd, err := unix.Open(d.dev, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", d.dev, err)
	}
	return &handle{fd: fd, dev: d}, nil
}

type handle struct {
	mx  sync.Mutex
	fd  int
	dev *Device
}

func (h *handle) WaitReady(timeout time.Duration) (sensorhal.Readiness, error) {
	h.mx.Lock()
	fd := h.fd
	h.mx.Unlock()
	if fd < 0 {
		return sensorhal.ReadyTimeout, ErrHandleClosed
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return sensorhal.ReadyTimeout, nil
	}
	if err != nil {
		return sensorhal.ReadyTimeout, fmt.Errorf("could not poll %s: %w", h.dev.dev, err)
	}
	if n == 0 {
		return sensorhal.ReadyTimeout, nil
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return sensorhal.ReadyTimeout, fmt.Errorf("poll %s returned events %#x", h.dev.dev, fds[0].Revents)
	}
	return sensorhal.ReadyData, nil
}

func (h *handle) ReadRaw(ctx context.Context) (sensorhal.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return sensorhal.RawSample{}, err
	}
	h.mx.Lock()
	closed := h.fd < 0
	h.mx.Unlock()
	if closed {
		return sensorhal.RawSample{}, ErrHandleClosed
	}
	return h.dev.readSample()
}

func (h *handle) Close() error {
	h.mx.Lock()
	defer h.mx.Unlock()
	if h.fd < 0 {
		return ErrHandleClosed
	}
	err := unix.Close(h.fd)
	h.fd = -1
	if err != nil {
		return fmt.Errorf("could not close %s: %w", h.dev.dev, err)
	}
	return nil
}
