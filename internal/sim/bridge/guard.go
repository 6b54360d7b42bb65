package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNonWhitelistedDevice is returned when the agent drives a device outside the whitelist.
var ErrNonWhitelistedDevice = errors.New("refusing to drive non-whitelisted HIL device")

// DeviceGuard checks the device reported by the agent against a whitelist to
// prevent injecting faults into hardware wired to a live system.
type DeviceGuard interface {
	// Check returns an error if device is not whitelisted.
	Check(device string) error
}

type deviceGuard struct {
	safeDevices []string
	log         logrus.FieldLogger
}

// Compile-time check to ensure deviceGuard implements DeviceGuard interface.
var _ DeviceGuard = (*deviceGuard)(nil)

// NewDeviceGuard creates a guard for the provided whitelist. An empty whitelist
// allows nothing.
func NewDeviceGuard(safeDevices []string, log logrus.FieldLogger) DeviceGuard {
	return &deviceGuard{
		safeDevices: safeDevices,
		log:         log.WithField("component", "device_guard"),
	}
}

func (g *deviceGuard) Check(device string) error {
	device = strings.TrimSpace(device)
	if !g.isWhitelisted(device) {
		return g.newSafetyError(device)
	}

	g.log.WithFields(logrus.Fields{
		"device":    device,
		"whitelist": g.safeDevices,
	}).Info("HIL device validated successfully")

	return nil
}

func (g *deviceGuard) isWhitelisted(device string) bool {
	for _, safe := range g.safeDevices {
		if device == safe {
			return true
		}
	}
	return false
}

func (g *deviceGuard) newSafetyError(device string) error {
	return fmt.Errorf(
		"SAFETY: refusing to drive non-whitelisted HIL device '%s'. "+
			"Fault injection on a device wired to live equipment can operate real breakers. "+
			"To allow this device, add it to HILBENCH_SAFE_DEVICES. "+
			"Current whitelist: %v: %w",
		device,
		g.safeDevices,
		ErrNonWhitelistedDevice,
	)
}
