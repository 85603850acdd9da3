package ant

import (
	"bytes"
	"log"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"
)

// DecoderConfig bounds the decoder's buffering and selects which message
// identifiers may carry a nested frame.
type DecoderConfig struct {
	MaxBuffer      int    // bytes kept while no sync byte is present
	MaxPayload     int    // larger declared lengths are treated as a false sync
	VerifyChecksum bool   // drop frames whose trailing checksum does not match
	TunnelIDs      []byte // message ids whose payload may hold an inner frame at offset 1
}

// DefaultDecoderConfig returns the decoder defaults.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		MaxBuffer:  256,
		MaxPayload: 64,
		TunnelIDs:  []byte{MsgBurstData, MsgAcknowledgedData},
	}
}

// Decoder turns an arbitrarily chunked byte stream into frames. Bytes that do
// not yet form a complete frame are retained across Feed calls.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	cfg    DecoderConfig
	tunnel [256]bool
	buf    []byte
	logger *log.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder(cfg DecoderConfig, logger *log.Logger) *Decoder {
	if logger == nil {
		panic("Decoder: logger cannot be nil")
	}
	if cfg.MaxPayload <= 0 || cfg.MaxPayload > 255 {
		cfg.MaxPayload = 255
	}
	if cfg.MaxBuffer < cfg.MaxPayload+overheadSize {
		cfg.MaxBuffer = cfg.MaxPayload + overheadSize
	}
	d := &Decoder{cfg: cfg, logger: logger}
	for _, id := range cfg.TunnelIDs {
		d.tunnel[id] = true
	}
	return d
}

// Buffered returns the number of bytes waiting for the rest of a frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset drops any partially received frame.
func (d *Decoder) Reset() {
	d.buf = nil
}

// Feed appends chunk to the internal buffer and returns every complete frame
// now available, in stream order. It never fails: malformed input is skipped.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for len(d.buf) > 0 {
		start := bytes.IndexByte(d.buf, SyncByte)
		if start < 0 {
			if len(d.buf) > d.cfg.MaxBuffer {
				d.discard(len(d.buf))
			}
			break
		}
		if start > 0 {
			d.discard(start)
		}
		if len(d.buf) < headerSize {
			break
		}

		length := int(d.buf[1])
		if length > d.cfg.MaxPayload {
			// not a real frame start
			d.discard(1)
			continue
		}
		total := length + overheadSize
		if len(d.buf) < total {
			break
		}

		raw := d.buf[:total]
		if d.cfg.VerifyChecksum && Checksum(raw[:total-1]) != raw[total-1] {
			metrics.RecordDrop(metrics.DropChecksum)
			d.discard(1)
			continue
		}

		frame := Frame{
			ID:      raw[2],
			Payload: bytes.Clone(raw[headerSize : total-1]),
		}
		d.buf = d.buf[total:]
		metrics.FramesDecodedTotal.Inc()
		frames = append(frames, d.unwrap(frame))
	}

	if len(d.buf) == 0 {
		d.buf = nil
	} else {
		d.buf = bytes.Clone(d.buf)
	}
	return frames
}

// unwrap replaces a tunnel frame with the frame it carries. Only one level is
// removed: an inner tunnel frame is returned unchanged.
func (d *Decoder) unwrap(f Frame) Frame {
	if !d.tunnel[f.ID] || len(f.Payload) < 1+headerSize || f.Payload[1] != SyncByte {
		return f
	}
	inner := f.Payload[1:]
	total := int(inner[1]) + overheadSize
	if len(inner) < total {
		d.logger.Printf("Decoder: truncated inner frame in 0x%02X (have %d, need %d)", f.ID, len(inner), total)
		return f
	}
	if d.cfg.VerifyChecksum && Checksum(inner[:total-1]) != inner[total-1] {
		metrics.RecordDrop(metrics.DropChecksum)
		return f
	}
	metrics.FramesUnwrappedTotal.Inc()
	return Frame{
		ID:       inner[2],
		Payload:  bytes.Clone(inner[headerSize : total-1]),
		Tunneled: true,
	}
}

func (d *Decoder) discard(n int) {
	metrics.BytesDiscardedTotal.Add(float64(n))
	d.buf = d.buf[n:]
}
