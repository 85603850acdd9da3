package ant

import (
	"bytes"
	"io"
	"log"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func powerFrame(power uint16) []byte {
	return EncodeBroadcast(1, StandardPowerPage(1, 90, power), Identity{DeviceID: 4242, DeviceType: DeviceTypePower, TransmissionType: 5}, true)
}

func sampleStream() []byte {
	var stream []byte
	stream = append(stream, powerFrame(150)...)
	stream = append(stream, Encode(MsgChannelEvent, []byte{1, 1, 3})...)
	stream = append(stream, EncodeBroadcast(2, HeartRatePage(PageHeartRateDefault, true, 7, 141), Identity{DeviceID: 77, DeviceType: DeviceTypeHeartRate, TransmissionType: 1}, true)...)
	stream = append(stream, powerFrame(312)...)
	return stream
}

func TestNewDecoder_NilLogger(t *testing.T) {
	assert.Panics(t, func() {
		NewDecoder(DefaultDecoderConfig(), nil)
	})
}

func TestDecoder_SingleFrame(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig(), testLogger())

	frames := d.Feed(powerFrame(250))

	require.Len(t, frames, 1)
	assert.Equal(t, MsgBroadcastData, frames[0].ID)
	assert.Len(t, frames[0].Payload, 14)
	assert.False(t, frames[0].Tunneled)
	assert.Equal(t, 0, d.Buffered())
}

func TestDecoder_ChunkBoundariesDoNotMatter(t *testing.T) {
	stream := sampleStream()
	want := NewDecoder(DefaultDecoderConfig(), testLogger()).Feed(stream)
	require.Len(t, want, 4)

	// every two-way split
	for split := 0; split <= len(stream); split++ {
		d := NewDecoder(DefaultDecoderConfig(), testLogger())
		got := d.Feed(stream[:split])
		got = append(got, d.Feed(stream[split:])...)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("split at %d changed frames (-want +got):\n%s", split, diff)
		}
	}

	// random chunkings, including single bytes
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		d := NewDecoder(DefaultDecoderConfig(), testLogger())
		var got []Frame
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(6)
			if n > len(rest) {
				n = len(rest)
			}
			got = append(got, d.Feed(rest[:n])...)
			rest = rest[n:]
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round %d changed frames (-want +got):\n%s", round, diff)
		}
	}
}

func TestDecoder_NoiseBeforeSyncIsDiscarded(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig(), testLogger())
	stream := append([]byte{0x01, 0x02, 0x33, 0x00}, powerFrame(200)...)

	frames := d.Feed(stream)

	require.Len(t, frames, 1)
	assert.Equal(t, MsgBroadcastData, frames[0].ID)
	assert.Equal(t, 0, d.Buffered())
}

func TestDecoder_PartialFrameWaits(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig(), testLogger())
	frame := powerFrame(200)

	assert.Empty(t, d.Feed(frame[:2]))
	assert.Empty(t, d.Feed(frame[2:10]))
	assert.Equal(t, 10, d.Buffered())

	frames := d.Feed(frame[10:])
	require.Len(t, frames, 1)
	assert.Equal(t, 0, d.Buffered())
}

func TestDecoder_BufferBoundWithoutSync(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig(), testLogger())

	assert.Empty(t, d.Feed(make([]byte, 100)))
	assert.Equal(t, 100, d.Buffered())

	assert.Empty(t, d.Feed(make([]byte, 200)))
	assert.Equal(t, 0, d.Buffered(), "garbage beyond the bound is dropped")

	frames := d.Feed(powerFrame(100))
	assert.Len(t, frames, 1)
}

func TestDecoder_FalseSyncIsSkipped(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig(), testLogger())
	stream := append([]byte{SyncByte, 0xF0, 0x11}, powerFrame(180)...)

	frames := d.Feed(stream)

	require.Len(t, frames, 1)
	assert.Equal(t, MsgBroadcastData, frames[0].ID)
}

func TestDecoder_ChecksumVerification(t *testing.T) {
	bad := powerFrame(120)
	bad[len(bad)-1] ^= 0xFF
	stream := append(bytes.Clone(bad), powerFrame(130)...)

	lenient := NewDecoder(DefaultDecoderConfig(), testLogger())
	assert.Len(t, lenient.Feed(stream), 2)

	cfg := DefaultDecoderConfig()
	cfg.VerifyChecksum = true
	strict := NewDecoder(cfg, testLogger())
	frames := strict.Feed(stream)
	require.Len(t, frames, 1)
	assert.Equal(t, byte(130), frames[0].Payload[7])
}

func TestDecoder_TunnelFrameIsUnwrapped(t *testing.T) {
	inner := powerFrame(275)
	outer := EncodeTunnel(MsgBurstData, 0, inner)

	direct := NewDecoder(DefaultDecoderConfig(), testLogger()).Feed(inner)
	tunneled := NewDecoder(DefaultDecoderConfig(), testLogger()).Feed(outer)

	require.Len(t, direct, 1)
	require.Len(t, tunneled, 1)
	assert.True(t, tunneled[0].Tunneled)
	assert.Equal(t, direct[0].ID, tunneled[0].ID)
	assert.Equal(t, direct[0].Payload, tunneled[0].Payload)
}

func TestDecoder_TunnelUnwrapsOneLevelOnly(t *testing.T) {
	inner := powerFrame(275)
	middle := EncodeTunnel(MsgBurstData, 0, inner)
	outer := EncodeTunnel(MsgBurstData, 0, middle)

	frames := NewDecoder(DefaultDecoderConfig(), testLogger()).Feed(outer)

	require.Len(t, frames, 1)
	assert.Equal(t, MsgBurstData, frames[0].ID)
	assert.True(t, frames[0].Tunneled)
	assert.Equal(t, middle[3:len(middle)-1], frames[0].Payload)
}

func TestDecoder_NonTunnelIDKeepsPayload(t *testing.T) {
	payload := append([]byte{0}, powerFrame(100)...)
	raw := Encode(0x61, payload)

	frames := NewDecoder(DefaultDecoderConfig(), testLogger()).Feed(raw)

	require.Len(t, frames, 1)
	assert.Equal(t, byte(0x61), frames[0].ID)
	assert.False(t, frames[0].Tunneled)
	assert.Equal(t, payload, frames[0].Payload)
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig(), testLogger())
	frame := powerFrame(200)
	d.Feed(frame[:6])
	d.Reset()
	assert.Equal(t, 0, d.Buffered())
	assert.Empty(t, d.Feed(frame[6:]))
}
