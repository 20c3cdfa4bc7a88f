// Headless remote-display player.
//
// Connects to a signaling server, negotiates a WebRTC session as the
// answering side and runs the video receive pipeline against a discard
// decoder: frames are depacketized, gated and "decoded" but never
// rendered. Useful for exercising the receive path against a real sender
// without a device attached.
//
// Usage:
//
//	go run ./cmd/player -addr 127.0.0.1:8554
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	pioninterceptor "github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/openmirror/vidrecv/pkg/rtcvideo"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/engine"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/events"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/interceptor"
	"github.com/openmirror/vidrecv/pkg/signaling"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8554", "signaling server address (host:port)")
	decoder := flag.String("decoder", "discard", "decoder name to request")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx, cancel, sigCh, log, *addr, *decoder); err != nil {
		log.WithError(err).Fatal("player failed")
	}
}

func run(
	ctx context.Context,
	cancel context.CancelFunc,
	sigCh <-chan os.Signal,
	log *logrus.Logger,
	addr, decoderName string,
) error {
	sig, err := signaling.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer sig.Close()
	log.WithField("addr", addr).Info("signaling connected")

	keyFrames := interceptor.NewKeyFrameRequester()

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return err
	}
	registry := &pioninterceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return err
	}
	registry.Add(keyFrames)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	defer pc.Close()

	bus := events.NewBus()
	defer bus.Close()

	cfg := rtcvideo.DefaultConfig()
	cfg.DecoderNames = map[engine.MimeType]string{
		engine.MimeVideoH264: decoderName,
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		log.WithFields(logrus.Fields{
			"ssrc": track.SSRC(),
			"mime": track.Codec().MimeType,
		}).Info("video track received")

		pipeline := rtcvideo.NewPipeline(
			rtcvideo.RemoteTrack(track),
			// Feedback goes through the interceptor chain rather than the
			// peer connection directly, so the registry sees every PLI.
			interceptorPeer{KeyFrameRequester: keyFrames, pc: pc},
			discardEngine{log: log},
			bus,
			cfg,
			rtcvideo.WithLogger(log),
		)
		go func() {
			err := pipeline.Run(ctx)
			log.WithError(err).Info("pipeline finished")
			cancel()
		}()

		// Headless: announce a placeholder surface so decoding starts. The
		// pipeline subscribes once the connection is up, and subscriptions
		// only observe events published after they exist, so wait a beat.
		go func() {
			time.Sleep(100 * time.Millisecond)
			bus.PublishSurfaceCreated(headlessSurface{})
		}()
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		msg, err := signaling.ICEMessage(c.ToJSON())
		if err != nil {
			log.WithError(err).Warn("encoding ice candidate")
			return
		}
		if err := sig.Send(ctx, msg); err != nil {
			log.WithError(err).Warn("sending ice candidate")
		}
	})

	go func() {
		select {
		case s := <-sigCh:
			log.WithField("signal", s).Info("shutting down")
		case <-ctx.Done():
		}
		bus.PublishApplicationDestroyed()
		cancel()
	}()

	return negotiate(ctx, sig, pc, log)
}

// negotiate answers the remote offer and relays ICE candidates until the
// signaling channel closes or the context is cancelled.
func negotiate(ctx context.Context, sig signaling.Signaler, pc *webrtc.PeerConnection, log *logrus.Logger) error {
	for {
		msg, err := sig.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, signaling.ErrClosed) {
				return nil
			}
			return err
		}

		switch msg.Kind {
		case signaling.KindSDP:
			var offer webrtc.SessionDescription
			if err := json.Unmarshal(msg.SDP, &offer); err != nil {
				log.WithError(err).Warn("decoding session description")
				continue
			}
			if err := pc.SetRemoteDescription(offer); err != nil {
				return err
			}
			answer, err := pc.CreateAnswer(nil)
			if err != nil {
				return err
			}
			if err := pc.SetLocalDescription(answer); err != nil {
				return err
			}
			reply, err := signaling.SDPMessage(answer)
			if err != nil {
				return err
			}
			if err := sig.Send(ctx, reply); err != nil {
				return err
			}
			log.Info("answer sent")

		case signaling.KindICE:
			var candidate webrtc.ICECandidateInit
			if err := json.Unmarshal(msg.Candidate, &candidate); err != nil {
				log.WithError(err).Warn("decoding ice candidate")
				continue
			}
			if err := pc.AddICECandidate(candidate); err != nil {
				log.WithError(err).Warn("adding ice candidate")
			}

		default:
			log.WithField("kind", msg.Kind).Warn("unknown signaling message")
		}
	}
}

type headlessSurface struct{}

// interceptorPeer is the pipeline's Peer backed by the interceptor chain:
// RTCP writes route through the KeyFrameRequester's bound writer, liveness
// comes from the peer connection.
type interceptorPeer struct {
	*interceptor.KeyFrameRequester
	pc *webrtc.PeerConnection
}

func (p interceptorPeer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

// discardEngine is a decode-free Engine: access units are accepted and
// counted, output release is paced at roughly display rate.
type discardEngine struct {
	log *logrus.Logger
}

func (e discardEngine) NewSession(name string) (engine.Session, error) {
	e.log.WithField("decoder", name).Info("discard session created")
	return &discardSession{
		log: e.log,
		buf: make([]byte, rtcvideo.MaxAccessUnitSize),
	}, nil
}

type discardSession struct {
	log    *logrus.Logger
	buf    []byte
	frames int
}

func (s *discardSession) Initialize(format *engine.Format, _ engine.Surface, _ bool) error {
	s.log.WithFields(logrus.Fields{
		"width":  format.Width,
		"height": format.Height,
	}).Info("discard session initialized")
	return nil
}

func (s *discardSession) SetOutputSurface(engine.Surface) error { return nil }

func (s *discardSession) DequeueInputBuffer(engine.Timeout) (engine.InputBuffer, error) {
	return engine.InputBuffer{Index: 0, Data: s.buf}, nil
}

func (s *discardSession) QueueInputBuffer(_ engine.InputBuffer, length int, _ int64, _ uint32) error {
	s.frames++
	if s.frames%300 == 0 {
		s.log.WithFields(logrus.Fields{
			"frames": s.frames,
			"bytes":  length,
		}).Info("still decoding")
	}
	return nil
}

func (s *discardSession) ReleaseOutputBuffer(engine.Timeout, bool) error {
	time.Sleep(16 * time.Millisecond)
	return nil
}

func (s *discardSession) SubmitCodecConfig([]byte) error { return nil }

func (s *discardSession) Close() error {
	s.log.WithField("frames", s.frames).Info("discard session closed")
	return nil
}
