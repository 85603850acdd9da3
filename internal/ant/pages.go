package ant

import "fmt"

// Data page numbers. Bit 7 of the page byte is a toggle and is masked off.
const (
	PageHeartRateDefault  byte = 0x00
	PageHeartRatePrevious byte = 0x04
	PageStandardPower     byte = 0x10
	PageTrainerData       byte = 0x19

	pageToggleMask byte = 0x7F
	pageSize            = 8
)

// Device type bytes carried in the identity window.
const (
	DeviceTypePower            byte = 0x0B
	DeviceTypeFitnessEquipment byte = 0x11
	DeviceTypeHeartRate        byte = 0x78
)

// Identity describes the transmitting device, taken from the extended
// identity window that follows a data page.
type Identity struct {
	DeviceID         uint32 // 20-bit composite device number
	DeviceType       byte
	TransmissionType byte // low nibble only; the high nibble extends DeviceID
}

func (i Identity) String() string {
	return fmt.Sprintf("%d/0x%02X", i.DeviceID, i.DeviceType)
}

// CompositeDeviceID combines the two device number bytes with the high nibble
// of the transmission type into the extended device number.
func CompositeDeviceID(lsb, msb, transmissionType byte) uint32 {
	return uint32(transmissionType>>4)<<16 | uint32(msb)<<8 | uint32(lsb)
}

// pageKey selects a decoder by device type and page number, because page
// numbers are only meaningful within a device profile.
type pageKey struct {
	deviceType byte
	page       byte
}

type pageDecoder func(page []byte, d *Dispatch) error

var pageDecoders = map[pageKey]pageDecoder{
	{DeviceTypePower, PageStandardPower}:          decodeStandardPower,
	{DeviceTypeFitnessEquipment, PageTrainerData}: decodeTrainerData,
	{DeviceTypeHeartRate, PageHeartRateDefault}:   decodeHeartRate,
	{DeviceTypeHeartRate, PageHeartRatePrevious}:  decodeHeartRate,
}

// decodeStandardPower reads the standard power-only page:
// byte 3 instantaneous cadence, bytes 6-7 instantaneous power (LE).
func decodeStandardPower(page []byte, d *Dispatch) error {
	if len(page) < pageSize {
		return fmt.Errorf("standard power page too short: %d bytes", len(page))
	}
	d.Companion = float64(page[3])
	d.HasCompanion = true
	d.Primary = float64(uint16(page[6]) | uint16(page[7])<<8)
	d.HasPrimary = true
	return nil
}

// decodeTrainerData reads the trainer-specific page: byte 2 cadence, byte 5 power
// LSB, low nibble of byte 6 power MSN, high nibble of byte 6 trainer status.
func decodeTrainerData(page []byte, d *Dispatch) error {
	if len(page) < pageSize {
		return fmt.Errorf("trainer data page too short: %d bytes", len(page))
	}
	d.Companion = float64(page[2])
	d.HasCompanion = true
	d.Primary = float64(uint16(page[5]) | uint16(page[6]&0x0F)<<8)
	d.HasPrimary = true
	d.TrainerStatus = page[6] >> 4
	return nil
}

// decodeHeartRate reads the computed heart rate common to all heart-rate pages.
func decodeHeartRate(page []byte, d *Dispatch) error {
	if len(page) < pageSize {
		return fmt.Errorf("heart rate page too short: %d bytes", len(page))
	}
	d.HeartRate = float64(page[7])
	d.HasHeartRate = true
	return nil
}
