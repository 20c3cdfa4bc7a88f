package rtcvideo

import "errors"

// Reorder buffer errors.
var (
	// ErrHeaderParsing reports an RTP packet whose header failed to parse.
	// Recoverable: the gate resets and a PLI is sent.
	ErrHeaderParsing = errors.New("rtcvideo: rtp header parsing failed")

	// ErrTrackRead reports a failed read from the remote track.
	// Recoverable unless the peer connection itself is gone.
	ErrTrackRead = errors.New("rtcvideo: track read failed")

	// ErrReadTimeout reports that no packet arrived within the read
	// deadline. Benign: callers use it to re-check cancellation.
	ErrReadTimeout = errors.New("rtcvideo: track read timed out")

	// ErrPacketTooShort reports a packet with no usable payload.
	// Benign: not a loss signal.
	ErrPacketTooShort = errors.New("rtcvideo: packet too short")

	// ErrBufferFull reports that the reorder window filled without the next
	// expected sequence number arriving. The buffer resynchronizes past the
	// gap; the caller must reset decode state and request recovery.
	ErrBufferFull = errors.New("rtcvideo: reorder buffer full")
)

// Depacketizer errors.
var (
	// ErrNeedMoreInput reports that the current unit spans further packets.
	// Not a failure; push the next payload.
	ErrNeedMoreInput = errors.New("rtcvideo: need more input")

	// ErrBufferOverflow reports that the reassembled unit would exceed the
	// destination buffer. Hard error: the unit is invalid.
	ErrBufferOverflow = errors.New("rtcvideo: output buffer overflow")

	// ErrShortPayload reports a payload too small to carry its declared
	// structure.
	ErrShortPayload = errors.New("rtcvideo: payload too short")

	// ErrUnhandledNALUType reports a packetization type the depacketizer
	// does not support (STAP-B, MTAP, FU-B).
	ErrUnhandledNALUType = errors.New("rtcvideo: unhandled nalu type")

	// ErrUnexpectedStartFragment reports a start fragment while a
	// fragmented unit is still being reassembled.
	ErrUnexpectedStartFragment = errors.New("rtcvideo: unexpected start fragment")

	// ErrMissingStartFragment reports a continuation fragment with no
	// preceding start fragment.
	ErrMissingStartFragment = errors.New("rtcvideo: fragment without start")
)

// Fatal pipeline errors. These terminate the pipeline; the embedding
// application is expected to tear the session down.
var (
	// ErrApplicationClosed is the designed termination signal: the
	// embedding application shut down.
	ErrApplicationClosed = errors.New("rtcvideo: application closed")

	// ErrWebRTCDisconnected reports that the peer connection left the
	// connected state.
	ErrWebRTCDisconnected = errors.New("rtcvideo: peer disconnected")

	// ErrUnknownMimeType reports a negotiated codec outside the MIME table.
	ErrUnknownMimeType = errors.New("rtcvideo: unknown mime type")

	// ErrUnsupportedCodec reports a known codec with no depacketizer.
	ErrUnsupportedCodec = errors.New("rtcvideo: unsupported codec")

	// ErrNoDecoder reports that no platform decoder is mapped to the
	// negotiated codec.
	ErrNoDecoder = errors.New("rtcvideo: no decoder for codec")

	// ErrSurfaceUnavailable reports a failure to bind a rendering surface
	// to the decoder output.
	ErrSurfaceUnavailable = errors.New("rtcvideo: surface unavailable")
)

// isLossError reports whether err implies data loss that must reset the
// reference-frame gate and trigger a PLI. ErrReadTimeout and
// ErrPacketTooShort are benign and excluded.
func isLossError(err error) bool {
	return errors.Is(err, ErrHeaderParsing) ||
		errors.Is(err, ErrTrackRead) ||
		errors.Is(err, ErrBufferFull)
}
