package rtcvideo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/sirupsen/logrus"

	"github.com/openmirror/vidrecv/pkg/rtcvideo/engine"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/events"
)

// h264StreamConfig collects the parameter sets needed to configure a
// decoder: SPS (which also yields the resolution) and PPS.
type h264StreamConfig struct {
	sps    []byte
	pps    []byte
	width  int
	height int
}

// ReadAccessUnit inspects a reassembled access unit for parameter sets.
// Units carrying anything but SPS/PPS NALUs are an error: before the
// decoder exists we cannot consume frame data, so the caller requests a
// fresh key frame (which the sender precedes with parameter sets).
func (c *h264StreamConfig) ReadAccessUnit(accessUnit []byte) error {
	chunks := naluChunks(accessUnit)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no nal units", ErrShortPayload)
	}
	for _, nalu := range chunks {
		if len(nalu) == 0 {
			return fmt.Errorf("%w: empty nal unit", ErrShortPayload)
		}
		switch nalu[0] & naluTypeMask {
		case naluTypeSPS:
			var sps h264.SPS
			if err := sps.Unmarshal(nalu); err != nil {
				return fmt.Errorf("parsing sps: %w", err)
			}
			c.width = sps.Width()
			c.height = sps.Height()
			c.sps = append(c.sps[:0], nalu...)
		case naluTypePPS:
			c.pps = append(c.pps[:0], nalu...)
		default:
			return fmt.Errorf("non-parameter-set nalu type %d before decoder init", nalu[0]&naluTypeMask)
		}
	}
	return nil
}

// Ready reports whether both parameter sets and the resolution are known.
func (c *h264StreamConfig) Ready() bool {
	return c.sps != nil && c.pps != nil && c.width > 0
}

// Resolution returns the coded picture size parsed from the SPS.
func (c *h264StreamConfig) Resolution() (width, height int) {
	return c.width, c.height
}

// CodecConfig returns the codec-specific data to submit before frame data:
// the SPS and PPS, each with an Annex-B start code.
func (c *h264StreamConfig) CodecConfig() []byte {
	var buf bytes.Buffer
	buf.Grow(2*len(naluStartCode) + len(c.sps) + len(c.pps))
	buf.Write(naluStartCode[:])
	buf.Write(c.sps)
	buf.Write(naluStartCode[:])
	buf.Write(c.pps)
	return buf.Bytes()
}

// bootstrap races lifecycle events, peer state and incoming payloads until
// both a surface and the stream configuration are known, then creates and
// initializes the decoder session. One-shot: the steady-state pipeline
// takes over afterwards.
func (p *Pipeline) bootstrap(
	ctx context.Context,
	sub *events.Subscription,
	mime engine.MimeType,
	decoderName string,
) (engine.Session, error) {
	pli := NewPLISender(p.peer, p.pliConfig(), p.clock)
	reorder := NewReorderBuffer(p.track, p.cfg.Reorder)
	scratch := make([]byte, p.cfg.MaxAccessUnitSize)
	depack := NewH264Depacketizer(scratch)
	var streamConfig h264StreamConfig

	var surface engine.Surface
	haveSurface := false

	for {
		if ctx.Err() != nil {
			return nil, ErrApplicationClosed
		}
		if !p.connected() {
			return nil, ErrWebRTCDisconnected
		}

		if haveSurface && streamConfig.Ready() {
			return p.createSession(mime, decoderName, &streamConfig, surface)
		}

		if ev, ok := sub.TryNext(); ok {
			switch ev := ev.(type) {
			case events.SurfaceCreated:
				s, err := p.bus.Surface(ev.Token)
				if err != nil {
					// Stale token: the surface was destroyed or replaced
					// already, and the event saying so is queued next.
					continue
				}
				surface = s
				haveSurface = true
			case events.SurfaceDestroyed:
				surface = nil
				haveSurface = false
			case events.ApplicationDestroyed:
				return nil, ErrApplicationClosed
			}
			continue
		}
		if sub.Done() {
			return nil, ErrApplicationClosed
		}

		payload, err := reorder.Recv()
		if err != nil {
			p.handleRecvError(err, depack, scratch, nil, pli)
			continue
		}

		switch err := depack.Push(payload); {
		case err == nil:
			n := depack.Finish()
			if cfgErr := streamConfig.ReadAccessUnit(scratch[:n]); cfgErr != nil {
				p.log.WithError(cfgErr).Debug("waiting for parameter sets")
				p.sendPLI(pli)
			}
			depack.WrapBuffer(scratch)
		case errorIsNeedMoreInput(err):
			// Unit continues in the next payload.
		default:
			p.log.WithError(err).Warn("depacketization error during bootstrap")
			depack.Finish()
			depack.WrapBuffer(scratch)
			p.sendPLI(pli)
		}
	}
}

// createSession builds the media format, applies the resolution hook and
// initializes the decoder against the current surface. Configuration bytes
// are submitted before any frame data.
func (p *Pipeline) createSession(
	mime engine.MimeType,
	decoderName string,
	streamConfig *h264StreamConfig,
	surface engine.Surface,
) (engine.Session, error) {
	width, height := streamConfig.Resolution()

	format := engine.NewFormat(mime, width, height)
	format.LowLatency = p.cfg.APILevel >= 30

	if p.cfg.OnResolution != nil {
		p.cfg.OnResolution(width, height)
	}

	session, err := p.engine.NewSession(decoderName)
	if err != nil {
		return nil, fmt.Errorf("creating decoder session %q: %w", decoderName, err)
	}
	if err := session.Initialize(format, surface, false); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("initializing decoder session: %w", err)
	}
	if err := session.SubmitCodecConfig(streamConfig.CodecConfig()); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("submitting codec config: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"decoder": decoderName,
		"width":   width,
		"height":  height,
	}).Info("decoder session initialized")

	return session, nil
}
