// Package engine defines the hardware decoder abstraction consumed by the
// video receive pipeline. Platform ports (Android MediaCodec, VideoToolbox,
// a software decoder) implement Engine and Session; the pipeline only ever
// talks to these interfaces.
package engine

import (
	"errors"
	"time"
)

// Input buffer flags for QueueInputBuffer.
const (
	// FlagCodecConfig marks the buffer as codec-specific data (SPS/PPS for
	// H.264). Must be submitted before any frame data. The pipeline itself
	// goes through SubmitCodecConfig; platform Session implementations are
	// expected to queue that data with this flag set.
	FlagCodecConfig uint32 = 1 << 1
)

// ErrNoAvailableBuffer is returned by DequeueInputBuffer and
// ReleaseOutputBuffer when no buffer became available within the timeout.
var ErrNoAvailableBuffer = errors.New("engine: no available buffer")

// ErrSessionCreation is returned by NewSession when the named decoder
// cannot be instantiated.
var ErrSessionCreation = errors.New("engine: session creation failed")

// Timeout is the wait budget for buffer operations, in microseconds.
// The codec is the pacing element of the pipeline, so most callers pass
// TimeoutInfinite.
type Timeout int64

// TimeoutInfinite blocks until a buffer is available.
const TimeoutInfinite Timeout = -1

// TimeoutFor converts a duration into a Timeout.
func TimeoutFor(d time.Duration) Timeout {
	return Timeout(d.Microseconds())
}

// Surface is an opaque rendering target supplied by the platform layer.
// The pipeline never inspects it; it is passed through to the session,
// which knows how to turn it into a native window.
type Surface any

// InputBuffer is a writable slot obtained from a session. Data aliases
// codec-owned memory; it is valid until the buffer is queued back.
type InputBuffer struct {
	Index int
	Data  []byte
}

// Engine creates decoder sessions by platform codec name.
type Engine interface {
	// NewSession instantiates the named decoder. The session is not usable
	// until Initialize has been called.
	NewSession(name string) (Session, error)
}

// Session wraps exactly one underlying decoder instance.
//
// Method calls are individually synchronized by the codec's own
// thread-safety contract: at most one goroutine feeds input buffers and at
// most one drains output buffers concurrently.
type Session interface {
	// Initialize configures and starts the decoder. A nil surface means
	// decode-only operation (frames are dropped, not rendered).
	Initialize(format *Format, surface Surface, isEncoder bool) error

	// SetOutputSurface rebinds the decoder output to a new surface without
	// recreating the session. Safe to call between output buffer releases.
	SetOutputSurface(surface Surface) error

	// DequeueInputBuffer returns the next writable input slot.
	DequeueInputBuffer(timeout Timeout) (InputBuffer, error)

	// QueueInputBuffer submits length bytes of buf to the decoder.
	QueueInputBuffer(buf InputBuffer, length int, ptsMicros int64, flags uint32) error

	// ReleaseOutputBuffer dequeues one output buffer and releases it,
	// rendering it to the bound surface when render is true.
	ReleaseOutputBuffer(timeout Timeout, render bool) error

	// SubmitCodecConfig queues codec-specific data with FlagCodecConfig.
	SubmitCodecConfig(data []byte) error

	// Close stops and destroys the decoder.
	Close() error
}
