package rtcvideo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmirror/vidrecv/pkg/rtcvideo/internal"
)

func TestPLISender_CoalescesWithinInterval(t *testing.T) {
	peer := newFakePeer()
	clock := internal.NewMockClock(time.Time{})
	pli := NewPLISender(peer, DefaultPLISenderConfig(0xCAFE), clock)

	// A burst of loss conditions inside one interval yields one request.
	for i := 0; i < 10; i++ {
		require.NoError(t, pli.Send())
		clock.Advance(time.Millisecond)
	}
	assert.Equal(t, 1, peer.pliCount())
}

func TestPLISender_SendsAgainAfterInterval(t *testing.T) {
	peer := newFakePeer()
	clock := internal.NewMockClock(time.Time{})
	pli := NewPLISender(peer, DefaultPLISenderConfig(0xCAFE), clock)

	require.NoError(t, pli.Send())
	clock.Advance(50 * time.Millisecond)
	require.NoError(t, pli.Send())
	clock.Advance(50 * time.Millisecond)
	require.NoError(t, pli.Send())

	assert.Equal(t, 3, peer.pliCount())
}

func TestPLISender_WriteFailureRetries(t *testing.T) {
	peer := newFakePeer()
	clock := internal.NewMockClock(time.Time{})
	pli := NewPLISender(peer, DefaultPLISenderConfig(0xCAFE), clock)

	peer.writeErr = errors.New("transport down")
	assert.Error(t, pli.Send())
	assert.True(t, pli.LastSentTime().IsZero(), "failed write must not count as sent")

	// The very next trigger retries without waiting out the interval.
	peer.writeErr = nil
	require.NoError(t, pli.Send())
	assert.Equal(t, 1, peer.pliCount())
	assert.Equal(t, clock.Now(), pli.LastSentTime())
}

func TestPLISender_PacketAddressing(t *testing.T) {
	peer := newFakePeer()
	cfg := DefaultPLISenderConfig(0xCAFE)
	cfg.SenderSSRC = 0xBEEF
	pli := NewPLISender(peer, cfg, internal.NewMockClock(time.Time{}))

	require.NoError(t, pli.Send())
	require.Len(t, peer.written, 1)
	p := peer.written[0]
	assert.Equal(t, []uint32{0xCAFE}, p.DestinationSSRC())
}
