package rtcvideo

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// CodecParameters is the negotiated codec of a track.
type CodecParameters struct {
	MimeType  string
	ClockRate uint32
}

// Track is the pipeline's view of one remote media stream: an ordered,
// lossy, potentially-reordered packet source.
type Track interface {
	// Read fills buf with the next raw RTP packet. It blocks until a packet
	// arrives, the read deadline expires, or the track fails.
	Read(buf []byte) (int, error)

	// SetReadDeadline bounds the next Read. A zero time clears the deadline.
	SetReadDeadline(t time.Time) error

	// SSRC returns the synchronization source identifier of the stream.
	SSRC() uint32

	// Codec returns the negotiated codec parameters.
	Codec() CodecParameters
}

// RTCPWriter sends receiver feedback to the remote peer.
type RTCPWriter interface {
	WriteRTCP(pkts []rtcp.Packet) error
}

// Peer is the pipeline's view of the peer connection: connection liveness
// plus the control channel used for loss-recovery feedback.
type Peer interface {
	RTCPWriter

	// ConnectionState returns the current peer connection state.
	ConnectionState() webrtc.PeerConnectionState
}
