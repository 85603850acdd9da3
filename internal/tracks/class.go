package tracks

import (
	"fmt"
	"strings"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/ant"
)

// DeviceClass is a position in the device capability lattice. Classes in the
// same family are totally ordered by rank; classes of different families are
// incomparable.
type DeviceClass int

const (
	ClassUnknown DeviceClass = iota
	ClassPowerMeter
	ClassSmartTrainer
	ClassHeartRate
)

type classInfo struct {
	name   string
	family string
	rank   int
}

var lattice = map[DeviceClass]classInfo{
	ClassPowerMeter:   {name: "power_meter", family: "power", rank: 1},
	ClassSmartTrainer: {name: "smart_trainer", family: "power", rank: 2},
	ClassHeartRate:    {name: "heart_rate", family: "heart_rate", rank: 1},
}

// ClassForDeviceType maps a radio device type byte to its class.
func ClassForDeviceType(deviceType byte) DeviceClass {
	switch deviceType {
	case ant.DeviceTypePower:
		return ClassPowerMeter
	case ant.DeviceTypeFitnessEquipment:
		return ClassSmartTrainer
	case ant.DeviceTypeHeartRate:
		return ClassHeartRate
	default:
		return ClassUnknown
	}
}

// Known reports whether c is a real class.
func (c DeviceClass) Known() bool {
	_, ok := lattice[c]
	return ok
}

// Comparable reports whether c and o belong to the same family.
func (c DeviceClass) Comparable(o DeviceClass) bool {
	a, okA := lattice[c]
	b, okB := lattice[o]
	return okA && okB && a.family == b.family
}

// Less reports whether c sits strictly below o in the lattice.
func (c DeviceClass) Less(o DeviceClass) bool {
	return c.Comparable(o) && lattice[c].rank < lattice[o].rank
}

func (c DeviceClass) String() string {
	if info, ok := lattice[c]; ok {
		return info.name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (c DeviceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *DeviceClass) UnmarshalText(text []byte) error {
	class, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = class
	return nil
}

// ParseClass parses a class name as produced by String.
func ParseClass(name string) (DeviceClass, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for class, info := range lattice {
		if info.name == name {
			return class, nil
		}
	}
	if name == "unknown" {
		return ClassUnknown, nil
	}
	return ClassUnknown, fmt.Errorf("unknown device class %q", name)
}
