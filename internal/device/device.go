// Package device describes the capabilities the front-end device exposes to a view:
// permission prompts and current-position resolution.
package device

import (
	"context"
	"errors"

	"market-finder/internal/geo"
)

var ErrNotGranted = errors.New("device: permission not granted")

// Permission asks the user for access to a device feature.
type Permission interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// Locator resolves the device position once location permission is granted.
type Locator interface {
	Permission
	CurrentPosition(ctx context.Context) (geo.Coordinates, error)
}

// Grant is a permission answer already collected by the device.
type Grant bool

func (g Grant) RequestPermission(context.Context) (bool, error) {
	return bool(g), nil
}

// Report is a location answer already collected by the device: whether the user
// allowed location access and, if so, where the device is.
type Report struct {
	Granted  bool
	Position geo.Coordinates
}

func (r Report) RequestPermission(context.Context) (bool, error) {
	return r.Granted, nil
}

func (r Report) CurrentPosition(context.Context) (geo.Coordinates, error) {
	if !r.Granted {
		return geo.Coordinates{}, ErrNotGranted
	}
	if err := r.Position.Validate(); err != nil {
		return geo.Coordinates{}, err
	}
	return r.Position, nil
}
