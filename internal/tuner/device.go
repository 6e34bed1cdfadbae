package tuner

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// ResolveDeviceIndex walks udev's "sdr" subsystem (the convention the
// front-end driver registers itself under) looking for a device whose
// serial property matches serial, returning its numeric device index
// from the DEVNUM property. This mirrors samoyed's device-enumeration
// pattern in spirit: resolve a stable hardware identifier to the
// runtime index the capture API expects, rather than hard-coding an
// index that shifts across reboots.
func ResolveDeviceIndex(serial string) (int, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("sdr"); err != nil {
		return -1, fmt.Errorf("tuner: udev match subsystem: %w", err)
	}
	devices, err := enum.Devices()
	if err != nil {
		return -1, fmt.Errorf("tuner: udev enumerate sdr devices: %w", err)
	}

	for _, dev := range devices {
		if dev.PropertyValue("ID_SERIAL_SHORT") != serial {
			continue
		}
		indexStr := dev.PropertyValue("DEVNUM")
		if indexStr == "" {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(indexStr, "%d", &idx); err != nil {
			return -1, fmt.Errorf("tuner: parse DEVNUM %q: %w", indexStr, err)
		}
		return idx, nil
	}
	return -1, fmt.Errorf("tuner: no sdr device with serial %q", serial)
}
