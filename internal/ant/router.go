package ant

import (
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"
)

// Offsets within a broadcast payload: channel number, 8-byte data page, then
// the optional flag byte and 4-byte identity window.
const (
	payloadChannel   = 0
	payloadPage      = 1
	payloadFlag      = payloadPage + pageSize
	payloadIdentity  = payloadFlag + 1
	identityWindow   = 4
	extendedIdentity = 0x80
)

// Dispatch is the routed content of one data frame.
type Dispatch struct {
	Channel  byte // radio channel number the frame arrived on
	Page     byte
	Identity Identity

	HasPrimary    bool
	Primary       float64
	HasCompanion  bool
	Companion     float64
	HasHeartRate  bool
	HeartRate     float64
	TrainerStatus byte
}

// Announcement reports whether the dispatch carries only a device identity.
func (d Dispatch) Announcement() bool {
	return !d.HasPrimary && !d.HasCompanion && !d.HasHeartRate
}

// Router maps frames to dispatches. It remembers the last identity seen on
// each radio channel so frames without an identity window can still be
// attributed. A Router is not safe for concurrent use.
type Router struct {
	identities map[byte]Identity
	logger     *log.Logger
	verbose    bool
	diag       rate.Sometimes
}

// NewRouter creates a Router. When verbose is set, dropped frames are logged,
// throttled to one line per interval.
func NewRouter(logger *log.Logger, verbose bool) *Router {
	if logger == nil {
		panic("Router: logger cannot be nil")
	}
	return &Router{
		identities: make(map[byte]Identity),
		logger:     logger,
		verbose:    verbose,
		diag:       rate.Sometimes{Interval: 5 * time.Second},
	}
}

// Forget clears every cached channel identity.
func (r *Router) Forget() {
	clear(r.identities)
}

// Route decodes a frame. ok is false when the frame carries nothing the
// engine can use; such frames are counted and otherwise ignored.
func (r *Router) Route(f Frame) (d Dispatch, ok bool) {
	if f.ID != MsgBroadcastData && f.ID != MsgAcknowledgedData {
		metrics.RecordDrop(metrics.DropUnknownMessage)
		r.debugf("Router: dropping message 0x%02X", f.ID)
		return Dispatch{}, false
	}
	if len(f.Payload) < payloadPage+pageSize {
		metrics.RecordDrop(metrics.DropUnknownMessage)
		r.debugf("Router: short data payload (%d bytes)", len(f.Payload))
		return Dispatch{}, false
	}

	d.Channel = f.Payload[payloadChannel]
	page := f.Payload[payloadPage : payloadPage+pageSize]
	d.Page = page[0] & pageToggleMask

	identity, found := r.identity(d.Channel, f.Payload)
	if !found {
		metrics.RecordDrop(metrics.DropNoIdentity)
		r.debugf("Router: no identity for channel %d page 0x%02X", d.Channel, d.Page)
		return Dispatch{}, false
	}
	d.Identity = identity

	decode, known := pageDecoders[pageKey{identity.DeviceType, d.Page}]
	if !known {
		metrics.RecordDrop(metrics.DropUnknownPage)
		r.debugf("Router: unknown page 0x%02X from %s", d.Page, identity)
		return d, true
	}
	if err := decode(page, &d); err != nil {
		r.debugf("Router: %v", err)
		return Dispatch{}, false
	}
	return d, true
}

func (r *Router) identity(channel byte, payload []byte) (Identity, bool) {
	if len(payload) >= payloadIdentity+identityWindow && payload[payloadFlag]&extendedIdentity != 0 {
		w := payload[payloadIdentity : payloadIdentity+identityWindow]
		id := Identity{
			DeviceID:         CompositeDeviceID(w[0], w[1], w[3]),
			DeviceType:       w[2],
			TransmissionType: w[3] & 0x0F,
		}
		r.identities[channel] = id
		return id, true
	}
	id, ok := r.identities[channel]
	return id, ok
}

func (r *Router) debugf(format string, args ...any) {
	if !r.verbose {
		return
	}
	r.diag.Do(func() { r.logger.Printf(format, args...) })
}
