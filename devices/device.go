package devices

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Device represents a component attached to the bus.
// It interacts with the rest of the system exclusively through its Port.
type Device interface {
	// ID yields the manufacturer and serial number for the device.
	ID() ID

	// Port returns the device's bus-facing request/response record.
	Port() *Port

	// Clock advances the device by one tick.
	Clock()

	// Startup initializes internal resources.
	Startup() error

	// Shutdown cleans up internal resources.
	Shutdown() error
}

// Map contains a list of registered devices.
type Map []Device

// Connect adds the given device to the device map.
// Returns false if the device type is already present in the set.
func (dm *Map) Connect(dev Device) bool {
	if (*dm).Find(dev.ID()) > -1 {
		return false
	}

	*dm = append(*dm, dev)
	return true
}

// Startup initializes internal resources.
func (dm Map) Startup(log logrus.FieldLogger) error {
	var errorset ErrorSet

	for _, dev := range dm {
		log.WithField("device", dev.ID()).Info("startup")
		if err := dev.Startup(); err != nil {
			errorset.Append(errors.Wrapf(err, "%s", dev.ID()))
		}
	}

	if errorset.Len() == 0 {
		return nil
	}

	return errorset
}

// Shutdown cleans up internal resources.
func (dm Map) Shutdown(log logrus.FieldLogger) error {
	var errorset ErrorSet

	for _, dev := range dm {
		log.WithField("device", dev.ID()).Info("shutdown")
		if err := dev.Shutdown(); err != nil {
			errorset.Append(errors.Wrapf(err, "%s", dev.ID()))
		}
	}

	if errorset.Len() == 0 {
		return nil
	}

	return errorset
}

// Find returns the index for the device with the given id.
// Returns -1 if it can't be found.
func (dm Map) Find(id ID) int {
	for i, dev := range dm {
		if dev.ID() == id {
			return i
		}
	}
	return -1
}

// FindType returns the index of the first device of the given type.
// Returns -1 if it can't be found.
func (dm Map) FindType(t Type) int {
	for i, dev := range dm {
		if dev.Port().Type == t {
			return i
		}
	}
	return -1
}
