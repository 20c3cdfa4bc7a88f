package rtcvideo

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack adapts a pion TrackRemote to the Track interface.
func RemoteTrack(tr *webrtc.TrackRemote) Track {
	return &remoteTrack{tr: tr}
}

type remoteTrack struct {
	tr *webrtc.TrackRemote
}

func (t *remoteTrack) Read(buf []byte) (int, error) {
	n, _, err := t.tr.Read(buf)
	return n, err
}

func (t *remoteTrack) SetReadDeadline(deadline time.Time) error {
	return t.tr.SetReadDeadline(deadline)
}

func (t *remoteTrack) SSRC() uint32 {
	return uint32(t.tr.SSRC())
}

func (t *remoteTrack) Codec() CodecParameters {
	c := t.tr.Codec()
	return CodecParameters{
		MimeType:  c.MimeType,
		ClockRate: c.ClockRate,
	}
}

// PeerConn adapts a pion PeerConnection to the Peer interface.
func PeerConn(pc *webrtc.PeerConnection) Peer {
	return &peerConn{pc: pc}
}

type peerConn struct {
	pc *webrtc.PeerConnection
}

func (p *peerConn) WriteRTCP(pkts []rtcp.Packet) error {
	return p.pc.WriteRTCP(pkts)
}

func (p *peerConn) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}
