// Package simulator generates synthetic sensor broadcasts in the radio wire
// format, for exercising the engine without hardware.
package simulator

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/ant"
)

// Kind is the sensor profile a simulated device transmits.
type Kind int

const (
	KindPowerMeter Kind = iota
	KindSmartTrainer
	KindHeartRate
)

var kindNames = [...]string{"power_meter", "smart_trainer", "heart_rate"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range kindNames {
		if n == name {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown device kind %q", name)
}

func (k Kind) deviceType() byte {
	switch k {
	case KindSmartTrainer:
		return ant.DeviceTypeFitnessEquipment
	case KindHeartRate:
		return ant.DeviceTypeHeartRate
	default:
		return ant.DeviceTypePower
	}
}

// Values are the measurements a device currently broadcasts.
type Values struct {
	Power     uint16 `json:"power" yaml:"power"`
	Cadence   uint8  `json:"cadence" yaml:"cadence"`
	HeartRate uint8  `json:"heart_rate" yaml:"heart_rate"`
	// Silent devices stop transmitting, which lets liveness kick in.
	Silent bool `json:"silent" yaml:"silent"`
}

// DeviceConfig describes one simulated device.
type DeviceConfig struct {
	Name     string `json:"name" yaml:"name"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	DeviceID uint32 `json:"device_id" yaml:"device_id"`
	Channel  byte   `json:"channel" yaml:"channel"`
	// IdentityEvery sends the extended identity window on every Nth frame
	// only. Zero or one means always.
	IdentityEvery int    `json:"identity_every" yaml:"identity_every"`
	Initial       Values `json:"initial" yaml:"initial"`
}

// DefaultDevices mirrors a typical setup: one power meter, one smart trainer
// and one heart rate strap on separate radio channels.
func DefaultDevices() []DeviceConfig {
	return []DeviceConfig{
		{Name: "Sim Power Meter", Kind: KindPowerMeter, DeviceID: 12345, Channel: 0,
			Initial: Values{Power: 180, Cadence: 88}},
		{Name: "Sim Smart Trainer", Kind: KindSmartTrainer, DeviceID: 23456, Channel: 1,
			Initial: Values{Power: 210, Cadence: 92}},
		{Name: "Sim HR Strap", Kind: KindHeartRate, DeviceID: 34567, Channel: 2, IdentityEvery: 4,
			Initial: Values{HeartRate: 132}},
	}
}

// Device is one simulated transmitter. All methods are safe for concurrent use.
type Device struct {
	cfg DeviceConfig

	mu         sync.Mutex
	values     Values
	eventCount uint8
	beatCount  uint8
	toggle     bool
	sent       uint64
}

func newDevice(cfg DeviceConfig) *Device {
	if cfg.DeviceID > 0xFFFFF {
		cfg.DeviceID &= 0xFFFFF
	}
	return &Device{cfg: cfg, values: cfg.Initial}
}

// Config returns the device description.
func (d *Device) Config() DeviceConfig {
	return d.cfg
}

// Values returns the current broadcast values.
func (d *Device) Values() Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.values
}

// Set replaces the broadcast values.
func (d *Device) Set(v Values) {
	d.mu.Lock()
	d.values = v
	d.mu.Unlock()
}

// Sent returns the number of frames produced so far.
func (d *Device) Sent() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

// Frame builds the next broadcast frame. Jitter, when positive, perturbs the
// power value by up to that many watts either way. It returns nil for a
// silent device.
func (d *Device) Frame(jitter int, rng *rand.Rand) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.values.Silent {
		return nil
	}
	d.eventCount++

	var page ant.Page
	switch d.cfg.Kind {
	case KindHeartRate:
		d.beatCount++
		// the toggle bit flips every fourth message
		if d.eventCount%4 == 0 {
			d.toggle = !d.toggle
		}
		page = ant.HeartRatePage(ant.PageHeartRateDefault, d.toggle, d.beatCount, d.values.HeartRate)
	case KindSmartTrainer:
		page = ant.TrainerDataPage(d.eventCount, d.values.Cadence, d.power(jitter, rng), 0)
	default:
		page = ant.StandardPowerPage(d.eventCount, d.values.Cadence, d.power(jitter, rng))
	}

	every := max(d.cfg.IdentityEvery, 1)
	withIdentity := d.sent%uint64(every) == 0
	d.sent++

	identity := ant.Identity{
		DeviceID:         d.cfg.DeviceID,
		DeviceType:       d.cfg.Kind.deviceType(),
		TransmissionType: 5,
	}
	return ant.EncodeBroadcast(d.cfg.Channel, page, identity, withIdentity)
}

func (d *Device) power(jitter int, rng *rand.Rand) uint16 {
	p := int(d.values.Power)
	if jitter > 0 && rng != nil && p > 0 {
		p += rng.IntN(2*jitter+1) - jitter
	}
	return uint16(max(p, 0))
}
