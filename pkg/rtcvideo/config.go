package rtcvideo

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openmirror/vidrecv/pkg/rtcvideo/engine"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/internal"
)

// Config configures a Pipeline.
type Config struct {
	// Reorder configures the sequence reorder buffer.
	Reorder ReorderBufferConfig

	// PLIInterval is the minimum spacing between picture-loss indications.
	PLIInterval time.Duration

	// MaxAccessUnitSize is the scratch capacity for one reassembled access
	// unit.
	MaxAccessUnitSize int

	// DecoderNames maps negotiated codecs to platform decoder names. A
	// codec without an entry fails pipeline startup with ErrNoDecoder.
	DecoderNames map[engine.MimeType]string

	// APILevel is the platform API level. Low-latency decoding is enabled
	// from level 30 on.
	APILevel int

	// ConnectPollInterval is how often the pre-bootstrap wait re-checks the
	// peer connection state.
	ConnectPollInterval time.Duration

	// OnResolution, when set, is invoked once the stream resolution is
	// known, before the decoder session is created. Used by embedders to
	// adjust the display aspect ratio.
	OnResolution func(width, height int)
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Reorder:             DefaultReorderBufferConfig(),
		PLIInterval:         50 * time.Millisecond,
		MaxAccessUnitSize:   MaxAccessUnitSize,
		ConnectPollInterval: 10 * time.Millisecond,
	}
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for pipeline events.
func WithLogger(log *logrus.Logger) Option {
	return func(p *Pipeline) {
		p.baseLog = log
	}
}

// WithClock sets the clock used for PLI rate limiting. Intended for tests.
func WithClock(clock internal.Clock) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}
