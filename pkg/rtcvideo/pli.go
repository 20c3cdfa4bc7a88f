package rtcvideo

import (
	"time"

	"github.com/pion/rtcp"

	"github.com/openmirror/vidrecv/pkg/rtcvideo/internal"
)

// PLISenderConfig configures a PLISender.
type PLISenderConfig struct {
	// Interval is the minimum spacing between picture-loss indications.
	// Loss conditions inside the interval are coalesced into one request.
	Interval time.Duration

	// MediaSSRC is the SSRC of the track the request is about.
	MediaSSRC uint32

	// SenderSSRC is the SSRC of the local receiver, usually left zero.
	SenderSSRC uint32
}

// DefaultPLISenderConfig returns the default configuration: a 50ms minimum
// interval.
func DefaultPLISenderConfig(mediaSSRC uint32) PLISenderConfig {
	return PLISenderConfig{
		Interval:  50 * time.Millisecond,
		MediaSSRC: mediaSSRC,
	}
}

// PLISender emits picture-loss-indication feedback to the peer,
// rate-limited to avoid feedback storms. Not safe for concurrent use.
type PLISender struct {
	config   PLISenderConfig
	clock    internal.Clock
	writer   RTCPWriter
	lastSent time.Time
	packets  []rtcp.Packet
}

// NewPLISender creates a PLISender writing through w. If clock is nil, the
// system monotonic clock is used.
func NewPLISender(w RTCPWriter, config PLISenderConfig, clock internal.Clock) *PLISender {
	if clock == nil {
		clock = internal.MonotonicClock{}
	}
	return &PLISender{
		config: config,
		clock:  clock,
		writer: w,
		packets: []rtcp.Packet{
			&rtcp.PictureLossIndication{
				SenderSSRC: config.SenderSSRC,
				MediaSSRC:  config.MediaSSRC,
			},
		},
	}
}

// Send writes one PLI unless the minimum interval has not yet elapsed, in
// which case it is a no-op. Write failures are surfaced but do not record
// a send, so the next trigger retries.
func (p *PLISender) Send() error {
	now := p.clock.Now()
	if !p.lastSent.IsZero() && now.Sub(p.lastSent) < p.config.Interval {
		return nil
	}
	if err := p.writer.WriteRTCP(p.packets); err != nil {
		return err
	}
	p.lastSent = now
	return nil
}

// LastSentTime returns when the last PLI was written, or the zero time.
func (p *PLISender) LastSentTime() time.Time {
	return p.lastSent
}
