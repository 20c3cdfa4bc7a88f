package rtcvideo

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/openmirror/vidrecv/pkg/rtcvideo/engine"
)

// timeoutError mimics the deadline-exceeded errors produced by pion's
// packet buffers.
type timeoutError struct{}

func (timeoutError) Error() string   { return "read deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeTrack is an in-memory Track fed by tests. Read blocks until a packet
// is available or the deadline passes.
type fakeTrack struct {
	packets chan []byte
	ssrc    uint32
	codec   CodecParameters

	mu       sync.Mutex
	deadline time.Time
	readErr  error
}

func newFakeTrack() *fakeTrack {
	return &fakeTrack{
		packets: make(chan []byte, 256),
		ssrc:    0xCAFE,
		codec:   CodecParameters{MimeType: "video/H264", ClockRate: 90000},
	}
}

func (t *fakeTrack) push(pkt []byte) {
	t.packets <- pkt
}

func (t *fakeTrack) failNextRead(err error) {
	t.mu.Lock()
	t.readErr = err
	t.mu.Unlock()
}

func (t *fakeTrack) Read(buf []byte) (int, error) {
	t.mu.Lock()
	deadline := t.deadline
	err := t.readErr
	t.readErr = nil
	t.mu.Unlock()

	if err != nil {
		return 0, err
	}

	var expired <-chan time.Time
	if !deadline.IsZero() {
		wait := time.Until(deadline)
		if wait <= 0 {
			select {
			case pkt, ok := <-t.packets:
				if !ok {
					return 0, io.EOF
				}
				return copy(buf, pkt), nil
			default:
				return 0, timeoutError{}
			}
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case pkt, ok := <-t.packets:
		if !ok {
			return 0, io.EOF
		}
		return copy(buf, pkt), nil
	case <-expired:
		return 0, timeoutError{}
	}
}

func (t *fakeTrack) SetReadDeadline(deadline time.Time) error {
	t.mu.Lock()
	t.deadline = deadline
	t.mu.Unlock()
	return nil
}

func (t *fakeTrack) SSRC() uint32           { return t.ssrc }
func (t *fakeTrack) Codec() CodecParameters { return t.codec }

// fakePeer records written RTCP and reports a settable connection state.
type fakePeer struct {
	mu       sync.Mutex
	state    webrtc.PeerConnectionState
	written  []rtcp.Packet
	writeErr error
}

func newFakePeer() *fakePeer {
	return &fakePeer{state: webrtc.PeerConnectionStateConnected}
}

func (p *fakePeer) WriteRTCP(pkts []rtcp.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.written = append(p.written, pkts...)
	return nil
}

func (p *fakePeer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePeer) setState(s webrtc.PeerConnectionState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *fakePeer) pliCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, pkt := range p.written {
		if _, ok := pkt.(*rtcp.PictureLossIndication); ok {
			n++
		}
	}
	return n
}

// fakeEngine hands out fakeSessions.
type fakeEngine struct {
	mu        sync.Mutex
	session   *fakeSession
	createErr error
	lastName  string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{session: newFakeSession()}
}

func (e *fakeEngine) NewSession(name string) (engine.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return nil, e.createErr
	}
	e.lastName = name
	return e.session, nil
}

func (e *fakeEngine) sessionName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastName
}

// fakeSession records the decoder usage protocol.
type fakeSession struct {
	mu          sync.Mutex
	format      *engine.Format
	surface     engine.Surface
	codecConfig []byte
	queued      [][]byte
	queueErr    error
	rebinds     []engine.Surface
	released    []bool
	closed      bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{}
}

func (s *fakeSession) Initialize(format *engine.Format, surface engine.Surface, isEncoder bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	s.surface = surface
	return nil
}

func (s *fakeSession) SetOutputSurface(surface engine.Surface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = surface
	s.rebinds = append(s.rebinds, surface)
	return nil
}

func (s *fakeSession) DequeueInputBuffer(timeout engine.Timeout) (engine.InputBuffer, error) {
	return engine.InputBuffer{Index: 0, Data: make([]byte, MaxAccessUnitSize)}, nil
}

func (s *fakeSession) QueueInputBuffer(buf engine.InputBuffer, length int, ptsMicros int64, flags uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queueErr != nil {
		return s.queueErr
	}
	s.queued = append(s.queued, append([]byte(nil), buf.Data[:length]...))
	return nil
}

func (s *fakeSession) ReleaseOutputBuffer(timeout engine.Timeout, render bool) error {
	s.mu.Lock()
	s.released = append(s.released, render)
	s.mu.Unlock()
	// Pace the pump the way a real codec would.
	time.Sleep(time.Millisecond)
	return nil
}

func (s *fakeSession) SubmitCodecConfig(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codecConfig = append([]byte(nil), data...)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) codecConfigBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.codecConfig...)
}

func (s *fakeSession) formatSnapshot() *engine.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.format == nil {
		return nil
	}
	f := *s.format
	return &f
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) queuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

func (s *fakeSession) queuedUnit(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued[i]
}

func (s *fakeSession) lastRenderFlags(n int) []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.released) < n {
		n = len(s.released)
	}
	return append([]bool(nil), s.released[len(s.released)-n:]...)
}

func (s *fakeSession) rebindCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rebinds)
}

// marshalPacket builds a raw RTP packet with the given sequence number.
func marshalPacket(t *testing.T, seq uint16, payload []byte) []byte {
	t.Helper()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 3000,
			SSRC:           0xCAFE,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	require.NoError(t, err)
	return raw
}

// Test bitstream fixtures.

// testSPS is a real 1280x720 SPS.
var testSPS = []byte{
	0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40, 0x50,
	0x05, 0xbb, 0x01, 0x6c, 0x80, 0x00, 0x00, 0x03,
	0x00, 0x80, 0x00, 0x00, 0x1e, 0x07, 0x8c, 0x18,
	0xcb,
}

var testPPS = []byte{0x68, 0xeb, 0xec, 0xb2, 0x2c}

// stapA aggregates NAL units into a STAP-A payload.
func stapA(nalus ...[]byte) []byte {
	out := []byte{naluTypeSTAPA}
	for _, nalu := range nalus {
		out = append(out, byte(len(nalu)>>8), byte(len(nalu)))
		out = append(out, nalu...)
	}
	return out
}

// fuaFragments splits one NAL unit into FU-A payloads of the given chunk
// size.
func fuaFragments(nalu []byte, chunkSize int) [][]byte {
	indicator := nalu[0]&0xE0 | naluTypeFUA
	typ := nalu[0] & naluTypeMask
	body := nalu[1:]

	var out [][]byte
	for i := 0; i < len(body); i += chunkSize {
		end := i + chunkSize
		if end > len(body) {
			end = len(body)
		}
		fuHeader := typ
		if i == 0 {
			fuHeader |= 0x80
		}
		if end == len(body) {
			fuHeader |= 0x40
		}
		frag := append([]byte{indicator, fuHeader}, body[i:end]...)
		out = append(out, frag)
	}
	return out
}

// idrNALU returns a synthetic IDR NAL unit of the given body length.
func idrNALU(bodyLen int) []byte {
	nalu := make([]byte, bodyLen+1)
	nalu[0] = 0x65 // NRI=3, type 5
	for i := 1; i < len(nalu); i++ {
		nalu[i] = byte(i)
	}
	return nalu
}

// sliceNALU returns a synthetic non-IDR slice NAL unit.
func sliceNALU(bodyLen int) []byte {
	nalu := make([]byte, bodyLen+1)
	nalu[0] = 0x41 // NRI=2, type 1
	for i := 1; i < len(nalu); i++ {
		nalu[i] = byte(255 - i)
	}
	return nalu
}

// annexB prefixes a NAL unit with the 4-byte start code.
func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		out = append(out, naluStartCode[:]...)
		out = append(out, nalu...)
	}
	return out
}
