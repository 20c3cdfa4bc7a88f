// Package interceptor provides a Pion interceptor that exposes the
// pipeline's loss-recovery signaling through the interceptor chain, for
// applications that route all RTCP through an interceptor registry instead
// of writing to the peer connection directly.
package interceptor

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"

	"github.com/openmirror/vidrecv/pkg/rtcvideo"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/internal"
)

// KeyFrameRequester is a Pion interceptor that sends rate-limited
// picture-loss indications for remote video streams. It implements
// rtcvideo.RTCPWriter once bound, so a Pipeline can signal loss through it.
type KeyFrameRequester struct {
	interceptor.NoOp // Embed for interface compliance

	mu      sync.Mutex
	writer  interceptor.RTCPWriter
	senders map[uint32]*rtcvideo.PLISender

	interval time.Duration
	clock    internal.Clock
}

// RequesterOption is a functional option for configuring KeyFrameRequester.
type RequesterOption func(*KeyFrameRequester)

// WithInterval sets the minimum spacing between PLIs per stream.
// Default is 50ms.
func WithInterval(d time.Duration) RequesterOption {
	return func(r *KeyFrameRequester) {
		r.interval = d
	}
}

// WithClock sets the clock used for rate limiting. Intended for tests.
func WithClock(clock internal.Clock) RequesterOption {
	return func(r *KeyFrameRequester) {
		r.clock = clock
	}
}

// NewKeyFrameRequester creates a new key frame requester interceptor.
func NewKeyFrameRequester(opts ...RequesterOption) *KeyFrameRequester {
	r := &KeyFrameRequester{
		senders:  make(map[uint32]*rtcvideo.PLISender),
		interval: 50 * time.Millisecond,
		clock:    internal.MonotonicClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewInterceptor implements interceptor.Factory, so a KeyFrameRequester
// can be added to an interceptor registry directly. The same instance is
// returned for every peer connection built from the registry.
func (r *KeyFrameRequester) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return r, nil
}

// BindRTCPWriter is called by Pion when the RTCP writer is ready. The
// writer passes through unchanged.
func (r *KeyFrameRequester) BindRTCPWriter(writer interceptor.RTCPWriter) interceptor.RTCPWriter {
	r.mu.Lock()
	r.writer = writer
	r.mu.Unlock()
	return writer
}

// UnbindRemoteStream drops the per-stream rate limiter state.
func (r *KeyFrameRequester) UnbindRemoteStream(info *interceptor.StreamInfo) {
	r.mu.Lock()
	delete(r.senders, info.SSRC)
	r.mu.Unlock()
}

// RequestKeyFrame sends a PLI for mediaSSRC, subject to the per-stream
// rate limit. A no-op before the RTCP writer is bound.
func (r *KeyFrameRequester) RequestKeyFrame(mediaSSRC uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil
	}
	sender, ok := r.senders[mediaSSRC]
	if !ok {
		cfg := rtcvideo.DefaultPLISenderConfig(mediaSSRC)
		cfg.Interval = r.interval
		sender = rtcvideo.NewPLISender(rtcpWriterFunc(r.write), cfg, r.clock)
		r.senders[mediaSSRC] = sender
	}
	return sender.Send()
}

// WriteRTCP implements rtcvideo.RTCPWriter, forwarding packets to the
// bound interceptor writer.
func (r *KeyFrameRequester) WriteRTCP(pkts []rtcp.Packet) error {
	r.mu.Lock()
	writer := r.writer
	r.mu.Unlock()
	if writer == nil {
		return nil
	}
	_, err := writer.Write(pkts, nil)
	return err
}

// write sends through the bound writer; callers hold r.mu.
func (r *KeyFrameRequester) write(pkts []rtcp.Packet) error {
	if r.writer == nil {
		return nil
	}
	_, err := r.writer.Write(pkts, nil)
	return err
}

type rtcpWriterFunc func(pkts []rtcp.Packet) error

func (f rtcpWriterFunc) WriteRTCP(pkts []rtcp.Packet) error {
	return f(pkts)
}
