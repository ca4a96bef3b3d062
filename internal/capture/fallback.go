package capture

import (
	"errors"
	"fmt"
)

// Opener creates an unopened camera for a device index.
type Opener func(deviceID int) Camera

// Devices maps facing modes to device indices. A negative index means
// the facing has no known device.
type Devices struct {
	User        int
	Environment int
	// Probe is how many indices, starting at 0, are tried when neither
	// facing device opens.
	Probe int
}

// For returns the device index for f.
func (d Devices) For(f FacingMode) int {
	if f == FacingEnvironment {
		return d.Environment
	}
	return d.User
}

// OpenFacing opens the camera for the preferred facing, falling back to
// the other facing and then to any probed device. It returns the opened
// camera and the facing it was opened as. Probed devices report the
// preferred facing since their direction is unknown.
func OpenFacing(open Opener, devices Devices, preferred FacingMode) (Camera, FacingMode, error) {
	type candidate struct {
		id     int
		facing FacingMode
	}

	candidates := []candidate{
		{devices.For(preferred), preferred},
		{devices.For(preferred.Other()), preferred.Other()},
	}
	for i := 0; i < devices.Probe; i++ {
		candidates = append(candidates, candidate{i, preferred})
	}

	tried := make(map[int]bool)
	var errs []error
	for _, c := range candidates {
		if c.id < 0 || tried[c.id] {
			continue
		}
		tried[c.id] = true

		cam := open(c.id)
		if err := cam.Open(); err != nil {
			errs = append(errs, fmt.Errorf("device %d: %w", c.id, err))
			continue
		}
		return cam, c.facing, nil
	}

	if len(errs) == 0 {
		return nil, preferred, ErrNoCamera
	}
	return nil, preferred, fmt.Errorf("%w: %w", ErrNoCamera, errors.Join(errs...))
}
