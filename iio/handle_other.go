//go:build !linux

package iio

import (
	"context"
	"errors"

	"github.com/mklimuk/sensorhal"
)

var ErrHandleClosed = errors.New("iio: data handle closed")

var errUnsupported = errors.New("iio: character devices are only available on linux")

func (d *Device) Open(ctx context.Context) (sensorhal.DataHandle, error) {
	return nil, errUnsupported
}
