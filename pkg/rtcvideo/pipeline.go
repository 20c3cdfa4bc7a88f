// Package rtcvideo implements the receive path of a WebRTC remote-display
// client: RTP packets from one video track are reordered, reassembled into
// H.264 access units and fed to a hardware decoder, while rendering follows
// the lifecycle of an externally-owned surface. Loss is recovered through
// rate-limited picture-loss-indication feedback.
package rtcvideo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openmirror/vidrecv/pkg/rtcvideo/engine"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/events"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/internal"
)

// Pipeline owns the RTP-to-decoder path for one remote video track.
//
// Run drives two phases: a bootstrap that waits for both the stream
// configuration and a rendering surface before creating the decoder
// session, and a steady state in which a feeder goroutine pushes access
// units into the decoder while a render pump drains its output and follows
// surface lifecycle events.
type Pipeline struct {
	cfg    Config
	track  Track
	peer   Peer
	engine engine.Engine
	bus    *events.Bus

	baseLog *logrus.Logger
	log     *logrus.Entry
	clock   internal.Clock
	id      uuid.UUID
}

// NewPipeline creates a pipeline reading track, signaling loss to peer and
// decoding through eng. Lifecycle events are consumed from bus.
func NewPipeline(track Track, peer Peer, eng engine.Engine, bus *events.Bus, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		track:  track,
		peer:   peer,
		engine: eng,
		bus:    bus,
		clock:  internal.MonotonicClock{},
		id:     uuid.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.baseLog == nil {
		p.baseLog = logrus.StandardLogger()
	}
	p.log = p.baseLog.WithFields(logrus.Fields{
		"pipeline": p.id,
		"ssrc":     track.SSRC(),
	})
	return p
}

// Run executes the pipeline until a terminal condition and returns the
// reason: ErrApplicationClosed and ErrWebRTCDisconnected are the designed
// termination signals, anything else is a startup or decoder failure. The
// embedding application is expected to log the reason and tear down.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.waitConnected(ctx); err != nil {
		return err
	}

	mime, err := engine.ParseMimeType(p.track.Codec().MimeType)
	if err != nil {
		return ErrUnknownMimeType
	}
	if mime != engine.MimeVideoH264 {
		return ErrUnsupportedCodec
	}
	decoderName, ok := p.cfg.DecoderNames[mime]
	if !ok {
		return ErrNoDecoder
	}

	// Bootstrap and steady state each take their own subscription so that
	// neither phase consumes events meant for the other. Both exist before
	// bootstrap runs, so no event can fall between the phases; the render
	// pump replays bootstrap-era events, which is harmless because rebind
	// and render-flag updates are idempotent.
	bootSub := p.bus.Subscribe()
	steadySub := p.bus.Subscribe()
	defer steadySub.Cancel()

	session, err := p.bootstrap(ctx, bootSub, mime, decoderName)
	bootSub.Cancel()
	if err != nil {
		return err
	}
	defer session.Close()

	p.log.Info("entering steady state")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runFeeder(gctx, session) })
	g.Go(func() error { return p.runRenderPump(gctx, session, steadySub) })
	err = g.Wait()

	if err == nil || errors.Is(err, context.Canceled) {
		err = ErrApplicationClosed
	}
	p.log.WithError(err).Info("pipeline terminated")
	return err
}

// waitConnected blocks until the peer connection reaches the connected
// state.
func (p *Pipeline) waitConnected(ctx context.Context) error {
	interval := p.cfg.ConnectPollInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	for !p.connected() {
		switch p.peer.ConnectionState() {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			return ErrWebRTCDisconnected
		}
		select {
		case <-ctx.Done():
			return ErrApplicationClosed
		case <-time.After(interval):
		}
	}
	return nil
}

// runFeeder is the decode-feeder loop: reorder, depacketize, gate, submit.
// It exits with nil once ctx is cancelled; fatal errors are limited to
// input buffer acquisition failures, which mean the session is gone.
func (p *Pipeline) runFeeder(ctx context.Context, session engine.Session) error {
	pli := NewPLISender(p.peer, p.pliConfig(), p.clock)
	reorder := NewReorderBuffer(p.track, p.cfg.Reorder)
	gate := &KeyFrameGate{}

	buf, err := session.DequeueInputBuffer(engine.TimeoutInfinite)
	if err != nil {
		return err
	}
	depack := NewH264Depacketizer(buf.Data)

	// The exit check happens once per iteration; the reorder buffer's read
	// deadline bounds how long a quiet network can delay it.
	for ctx.Err() == nil {
		payload, err := reorder.Recv()
		if err != nil {
			p.handleRecvError(err, depack, buf.Data, gate, pli)
			continue
		}

		switch err := depack.Push(payload); {
		case err == nil:
			n := depack.Finish()
			unit := buf.Data[:n]

			if !gate.Admit(unit) {
				// No reference frame yet; drop and ask for a key frame.
				p.sendPLI(pli)
				depack.WrapBuffer(buf.Data)
				continue
			}

			// A dropped frame is preferable to pipeline death: queueing
			// failures invalidate the gate but keep the loop alive.
			if qerr := session.QueueInputBuffer(buf, n, 0, 0); qerr != nil {
				p.log.WithError(qerr).Error("queue input buffer failed")
				gate.Invalidate()
			}

			buf, err = session.DequeueInputBuffer(engine.TimeoutInfinite)
			if err != nil {
				return err
			}
			depack.WrapBuffer(buf.Data)

		case errorIsNeedMoreInput(err):
			// Unit continues in the next payload.

		default:
			p.log.WithError(err).Warn("depacketization error")
			gate.Invalidate()
			depack.Finish()
			depack.WrapBuffer(buf.Data)
			p.sendPLI(pli)
		}
	}
	return nil
}

// runRenderPump drains decoder output and follows surface lifecycle
// events. It owns the terminal transitions of the steady state.
func (p *Pipeline) runRenderPump(ctx context.Context, session engine.Session, sub *events.Subscription) error {
	render := true

	for {
		if ctx.Err() != nil {
			return ErrApplicationClosed
		}
		if !p.connected() {
			return ErrWebRTCDisconnected
		}

		ev, ok := sub.TryNext()
		if !ok {
			if sub.Done() {
				return ErrApplicationClosed
			}
			// Keep draining even when not rendering, otherwise output
			// backpressure stalls the codec.
			if err := session.ReleaseOutputBuffer(engine.TimeoutInfinite, render); err != nil {
				p.log.WithError(err).Error("release output buffer failed")
			}
			continue
		}

		switch ev := ev.(type) {
		case events.SurfaceCreated:
			surface, err := p.bus.Surface(ev.Token)
			if err != nil {
				// The token went stale before the event was read: the
				// surface was destroyed or replaced, and the event saying
				// so is queued behind this one.
				p.log.Debug("skipping superseded surface event")
				continue
			}
			if err := session.SetOutputSurface(surface); err != nil {
				return fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
			}
			render = true
			p.log.Info("output surface rebound")
		case events.SurfaceDestroyed:
			render = false
			p.log.Info("surface destroyed, rendering disabled")
		case events.ApplicationDestroyed:
			return ErrApplicationClosed
		}
	}
}

// handleRecvError applies the reorder-buffer error policy: timeouts and
// short packets are benign, loss errors reset the gate and the in-progress
// unit and trigger a PLI.
func (p *Pipeline) handleRecvError(err error, depack Depacketizer, scratch []byte, gate *KeyFrameGate, pli *PLISender) {
	if errors.Is(err, ErrReadTimeout) || errors.Is(err, ErrPacketTooShort) {
		return
	}
	if isLossError(err) {
		p.log.WithError(err).Warn("reorder buffer error")
		if gate != nil {
			gate.Invalidate()
		}
		depack.Finish()
		depack.WrapBuffer(scratch)
		p.sendPLI(pli)
		return
	}
	p.log.WithError(err).Error("unexpected receive error")
}

// sendPLI fires the rate-limited loss-recovery request. Write failures are
// logged, not propagated: the render pump notices a dead peer connection.
func (p *Pipeline) sendPLI(pli *PLISender) {
	if err := pli.Send(); err != nil {
		p.log.WithError(err).Error("pli send failed")
	}
}

func (p *Pipeline) pliConfig() PLISenderConfig {
	cfg := DefaultPLISenderConfig(p.track.SSRC())
	if p.cfg.PLIInterval > 0 {
		cfg.Interval = p.cfg.PLIInterval
	}
	return cfg
}

func (p *Pipeline) connected() bool {
	return p.peer.ConnectionState() == webrtc.PeerConnectionStateConnected
}

func errorIsNeedMoreInput(err error) bool {
	return errors.Is(err, ErrNeedMoreInput)
}
