package ant

// Page is one 8-byte broadcast data page.
type Page [pageSize]byte

// StandardPowerPage builds a standard power-only page.
func StandardPowerPage(eventCount, cadence uint8, power uint16) Page {
	var p Page
	p[0] = PageStandardPower
	p[1] = eventCount
	p[2] = 0xFF // pedal balance not used
	p[3] = cadence
	p[6] = byte(power)
	p[7] = byte(power >> 8)
	return p
}

// TrainerDataPage builds a trainer-specific page. Power is truncated to 12 bits.
func TrainerDataPage(eventCount, cadence uint8, power uint16, status byte) Page {
	var p Page
	p[0] = PageTrainerData
	p[1] = eventCount
	p[2] = cadence
	p[5] = byte(power)
	p[6] = byte(power>>8)&0x0F | status<<4
	return p
}

// HeartRatePage builds a heart-rate page with the toggle bit set as given.
func HeartRatePage(page byte, toggle bool, beatCount, bpm uint8) Page {
	var p Page
	p[0] = page & pageToggleMask
	if toggle {
		p[0] |= 0x80
	}
	p[6] = beatCount
	p[7] = bpm
	return p
}

// BroadcastPayload lays out a broadcast payload for channel. The identity
// window is appended when withIdentity is set.
func BroadcastPayload(channel byte, page Page, id Identity, withIdentity bool) []byte {
	out := make([]byte, 0, payloadIdentity+identityWindow)
	out = append(out, channel)
	out = append(out, page[:]...)
	if !withIdentity {
		return out
	}
	trans := id.TransmissionType&0x0F | byte(id.DeviceID>>16)<<4
	return append(out, extendedIdentity, byte(id.DeviceID), byte(id.DeviceID>>8), id.DeviceType, trans)
}

// EncodeBroadcast encodes a complete broadcast data frame.
func EncodeBroadcast(channel byte, page Page, id Identity, withIdentity bool) []byte {
	return Encode(MsgBroadcastData, BroadcastPayload(channel, page, id, withIdentity))
}
